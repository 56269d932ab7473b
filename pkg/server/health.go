// Package server holds health probing shared by the HTTP servers.
package server

import "context"

// HealthChecker backs the readiness endpoint.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// HealthFunc adapts a function to HealthChecker.
type HealthFunc func(ctx context.Context) bool

func (f HealthFunc) Healthy(ctx context.Context) bool {
	return f(ctx)
}

// AlwaysHealthy serves backends without a remote dependency, e.g. the in-memory store.
var AlwaysHealthy HealthChecker = HealthFunc(func(context.Context) bool { return true })

// AllHealthy is healthy only while every non-nil checker is.
func AllHealthy(checkers ...HealthChecker) HealthChecker {
	return HealthFunc(func(ctx context.Context) bool {
		for _, c := range checkers {
			if c != nil && !c.Healthy(ctx) {
				return false
			}
		}
		return true
	})
}
