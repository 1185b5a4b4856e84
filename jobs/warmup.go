package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/atelier-market/atelier/internal/jobs"
	"github.com/atelier-market/atelier/internal/preload"
	"github.com/atelier-market/atelier/internal/rbac"
)

// Warmer loads storefront pages into the shared cache.
type Warmer interface {
	WarmCatalog(ctx context.Context) error
	Warm(ctx context.Context, t preload.Task) error
}

// RouteLister lists the rule paths a role may visit.
type RouteLister interface {
	AccessibleRoutes(role rbac.Role) []string
}

// WarmupJobs handles the storefront warmup tasks.
type WarmupJobs struct {
	Pages   Warmer
	Routes  RouteLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handlers returns the task handlers for registration with a Worker.
func (j *WarmupJobs) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskCatalogWarmup, Handler: j.HandleCatalogWarmup},
		{Type: TaskRoutePreload, Handler: j.HandleRoutePreload},
	}
}

// HandleCatalogWarmup refills the home page and first catalog page.
func (j *WarmupJobs) HandleCatalogWarmup(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Pages == nil {
		return errors.New("catalog warmup: handler not configured")
	}
	tracker := j.Metrics.Track(TaskCatalogWarmup)
	defer func() { err = tracker.End(err) }()

	if err = j.Pages.WarmCatalog(ctx); err != nil {
		j.logger().Error("catalog warmup", slog.Any("error", err))
		return err
	}
	j.Metrics.AddWarmed(TaskCatalogWarmup, 2)
	j.logger().Info("catalog warmed")
	return nil
}

// HandleRoutePreload warms dashboard pages for one subject. Every path is
// attempted; the first failure is returned so asynq retries the task.
func (j *WarmupJobs) HandleRoutePreload(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Pages == nil {
		return errors.New("route preload: handler not configured")
	}
	var payload RoutePreloadPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if !payload.Role.Known() || payload.UserID == "" {
		return asynq.SkipRetry
	}
	paths := payload.Paths
	if len(paths) == 0 && j.Routes != nil {
		paths = j.Routes.AccessibleRoutes(payload.Role)
	}

	tracker := j.Metrics.Track(TaskRoutePreload)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(slog.String("role", string(payload.Role)), slog.String("user_id", payload.UserID))
	warmed := 0
	var firstErr error
	for _, path := range paths {
		task := preload.Task{Role: payload.Role, UserID: payload.UserID, Path: path}
		if werr := j.Pages.Warm(ctx, task); werr != nil {
			logger.Warn("route preload", slog.String("path", path), slog.Any("error", werr))
			if firstErr == nil {
				firstErr = werr
			}
			continue
		}
		warmed++
	}
	j.Metrics.AddWarmed(TaskRoutePreload, warmed)
	logger.Info("routes preloaded", slog.Int("warmed", warmed), slog.Int("paths", len(paths)))
	return firstErr
}

func (j *WarmupJobs) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
