package scheduler

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}

// HealthCheckJob pings the database and logs when it stops answering.
type HealthCheckJob struct {
	DB     HealthChecker
	Logger *zap.Logger
}

func (j *HealthCheckJob) Name() string {
	return "health_check"
}

func (j *HealthCheckJob) Run(ctx context.Context) error {
	if !j.DB.IsHealthy(ctx) {
		j.Logger.Error("database is not responding")
		return errors.New("database ping failed")
	}
	return nil
}
