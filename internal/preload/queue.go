// Package preload warms page data for routes a user is likely to open next.
// It is best effort: a dropped or failed task only costs latency.
package preload

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atelier-market/atelier/internal/rbac"
)

// ErrStopped is returned by Run when called on a stopped queue.
var ErrStopped = errors.New("preload: queue stopped")

// Task asks for one route to be warmed for one subject.
type Task struct {
	Role   rbac.Role
	UserID string
	Path   string
}

// Key identifies duplicate tasks.
func (t Task) Key() string {
	return strings.Join([]string{string(t.Role), t.UserID, t.Path}, "|")
}

// Loader warms a single task.
type Loader func(ctx context.Context, t Task) error

// Options configures a Queue.
type Options struct {
	Size    int
	Workers int
	Timeout time.Duration
	Policy  *rbac.Policy
	Logger  *slog.Logger
}

// Queue is a bounded in-memory task queue that drops duplicates.
type Queue struct {
	loader  Loader
	policy  *rbac.Policy
	logger  *slog.Logger
	workers int
	timeout time.Duration
	tasks   chan Task

	mu      sync.Mutex
	pending map[string]struct{}
	stopped bool
}

// New constructs a Queue around loader.
func New(loader Loader, opts Options) *Queue {
	if opts.Size <= 0 {
		opts.Size = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Policy == nil {
		opts.Policy = rbac.DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Queue{
		loader:  loader,
		policy:  opts.Policy,
		logger:  opts.Logger,
		workers: opts.Workers,
		timeout: opts.Timeout,
		tasks:   make(chan Task, opts.Size),
		pending: make(map[string]struct{}),
	}
}

// Enqueue adds t unless an identical task is queued or running, or the queue
// is full. It never blocks and reports whether t was accepted.
func (q *Queue) Enqueue(t Task) bool {
	if q == nil {
		return false
	}
	key := t.Key()
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}
	if _, dup := q.pending[key]; dup {
		return false
	}
	select {
	case q.tasks <- t:
		q.pending[key] = struct{}{}
		return true
	default:
		return false
	}
}

// PreloadFor queues every rule path the subject may visit and returns how many were accepted.
func (q *Queue) PreloadFor(subject rbac.Subject) int {
	if q == nil || !subject.Authenticated() {
		return 0
	}
	accepted := 0
	for _, path := range q.policy.AccessibleRoutes(subject.Role) {
		if q.Enqueue(Task{Role: subject.Role, UserID: subject.UserID, Path: path}) {
			accepted++
		}
	}
	return accepted
}

// Pending reports queued plus in-flight tasks.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run processes tasks until ctx is done.
func (q *Queue) Run(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ErrStopped
	}
	q.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case t := <-q.tasks:
					q.process(ctx, t)
				}
			}
		})
	}
	err := g.Wait()
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	return err
}

func (q *Queue) process(ctx context.Context, t Task) {
	defer func() {
		q.mu.Lock()
		delete(q.pending, t.Key())
		q.mu.Unlock()
	}()
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	if err := q.loader(ctx, t); err != nil {
		q.logger.Debug("preload failed",
			slog.String("path", t.Path),
			slog.String("role", string(t.Role)),
			slog.Any("error", err))
	}
}
