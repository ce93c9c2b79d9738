package obs

import (
	"context"
	"time"
)

// CheckResult is the outcome of a single named health check.
type CheckResult struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// HealthStatus aggregates every check run during a Health call.
type HealthStatus struct {
	Status    string                  `json:"status"`
	Checks    map[string]*CheckResult `json:"checks"`
	CheckedAt time.Time               `json:"checked_at"`
}

// HealthChecker backs a database's Health method. Check reports a single
// fixed "basic" check as healthy; it does not inspect the db it holds.
type HealthChecker struct {
	db interface{}
}

// NewHealthChecker creates health checker
func NewHealthChecker(db interface{}) *HealthChecker {
	return &HealthChecker{db: db}
}

// Check performs health check
func (hc *HealthChecker) Check(ctx context.Context) (*HealthStatus, error) {
	return &HealthStatus{
		Status: "healthy",
		Checks: map[string]*CheckResult{
			"basic": {
				Healthy: true,
				Message: "system operational",
			},
		},
		CheckedAt: time.Now(),
	}, nil
}
