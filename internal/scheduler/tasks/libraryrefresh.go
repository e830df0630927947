package tasks

import (
	"context"
	"time"

	"github.com/backlogd/backlogd/internal/library"
	"github.com/backlogd/backlogd/internal/scheduler"
)

const LibraryRefreshTaskID = "library-refresh"

// RegisterLibraryRefreshTask registers the task that re-fetches mirrored
// games older than staleAfter.
func RegisterLibraryRefreshTask(sched *scheduler.Scheduler, service *library.Service, cron string, staleAfter time.Duration) error {
	return sched.RegisterTask(&scheduler.TaskConfig{
		ID:          LibraryRefreshTaskID,
		Name:        "Library Refresh",
		Description: "Refreshes mirrored games from the catalog",
		Cron:        cron,
		RunOnStart:  false,
		Timeout:     30 * time.Minute,
		Func: func(ctx context.Context) error {
			_, err := service.RefreshStale(ctx, staleAfter)
			return err
		},
	})
}
