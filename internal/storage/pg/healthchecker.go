package pg

import (
	"context"
)

// HealthChecker reports whether the database answers a ping.
type HealthChecker struct {
	db PgxIface
}

func NewHealthChecker(db PgxIface) *HealthChecker {
	return &HealthChecker{
		db: db,
	}
}

func (hc *HealthChecker) Healthy(ctx context.Context) bool {
	if hc.db == nil {
		return false
	}

	return hc.db.Ping(ctx) == nil
}
