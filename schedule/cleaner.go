package schedule

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/pkger-build/pkger/build"
	"github.com/pkger-build/pkger/container"
)

// Cleaner is component K (SessionCleaner): a best-effort sweep of every
// container left behind by one session, keyed by the label every
// spawned container carries.
type Cleaner struct {
	engine container.Engine
	logger hclog.Logger
}

// NewCleaner returns a Cleaner.
func NewCleaner(engine container.Engine, logger hclog.Logger) *Cleaner {
	return &Cleaner{engine: engine, logger: logger}
}

// Prune removes every container labeled with sessionID and returns the
// bytes reclaimed. Failures are logged, never returned: cleanup must
// never turn a successful build run into a failing process exit.
func (c *Cleaner) Prune(ctx context.Context, sessionID string) uint64 {
	label := fmt.Sprintf("%s=%s", build.SessionLabelKey, sessionID)

	reclaimed, err := c.engine.PruneContainers(ctx, label)
	if err != nil {
		c.logger.Warn("failed pruning session containers", "session-id", sessionID, "reason", err)
		return 0
	}
	c.logger.Debug("pruned session containers", "session-id", sessionID, "reclaimed-bytes", reclaimed)
	return reclaimed
}
