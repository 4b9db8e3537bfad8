// internal/core/ports/database.go
package ports

import "context"

// HealthChecker is implemented by infrastructure the health endpoints probe
type HealthChecker interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) map[string]interface{}
}
