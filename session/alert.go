package session

import (
	"context"

	"go.uber.org/zap"
)

// Alerter is notified when an expired container could not be torn down.
type Alerter interface {
	CleanupFailed(ctx context.Context, containerID string, attempts int, err error)
}

// LogAlerter reports cleanup failures through the application logger.
type LogAlerter struct {
	logger *zap.Logger
}

// NewLogAlerter creates a LogAlerter
func NewLogAlerter(logger *zap.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) CleanupFailed(_ context.Context, containerID string, attempts int, err error) {
	a.logger.Error("container cleanup abandoned, container may be leaked",
		zap.String("container_id", containerID),
		zap.Int("attempts", attempts),
		zap.Error(err))
}
