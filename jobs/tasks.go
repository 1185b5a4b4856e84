package jobs

import (
	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"

	"github.com/atelier-market/atelier/internal/rbac"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogWarmup refills the public catalog cache.
	TaskCatalogWarmup = "storefront:catalog_warmup"
	// TaskRoutePreload warms the dashboard pages one user may open.
	TaskRoutePreload = "storefront:route_preload"
)

// RoutePreloadPayload names the subject and paths to warm. An empty Paths
// warms every rule path the role may visit.
type RoutePreloadPayload struct {
	Role   rbac.Role `json:"role"`
	UserID string    `json:"user_id"`
	Paths  []string  `json:"paths,omitempty"`
}

// NewCatalogWarmupTask constructs a catalog warmup task.
func NewCatalogWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskCatalogWarmup, nil)
}

// NewRoutePreloadTask constructs a route preload task.
func NewRoutePreloadTask(payload RoutePreloadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRoutePreload, data), nil
}
