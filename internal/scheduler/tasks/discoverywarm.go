package tasks

import (
	"time"

	"github.com/backlogd/backlogd/internal/discovery"
	"github.com/backlogd/backlogd/internal/scheduler"
)

const DiscoveryWarmTaskID = "discovery-warm"

// RegisterDiscoveryWarmTask registers the task that refreshes the cached
// landing-page listings and taxonomies.
func RegisterDiscoveryWarmTask(sched *scheduler.Scheduler, service *discovery.Service, cron string) error {
	return sched.RegisterTask(&scheduler.TaskConfig{
		ID:          DiscoveryWarmTaskID,
		Name:        "Discovery Cache Warm",
		Description: "Prefetches featured, top and coming-soon games plus genres and platforms",
		Cron:        cron,
		RunOnStart:  true,
		Timeout:     2 * time.Minute,
		Func:        service.Warm,
	})
}
