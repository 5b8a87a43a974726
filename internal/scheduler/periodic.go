package scheduler

import (
	"context"
	"fmt"

	"backoffice_portal_backend/platform/config"
	"backoffice_portal_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic registers the cron entries that enqueue postal catalog refresh
// tasks, one per configured country.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	scheduler := asynq.NewScheduler(opt, nil)

	cron := cfg.GetPostalRefreshCron()
	for _, country := range cfg.GetPostalRefreshCountries() {
		task, err := NewPostalCatalogRefreshTask(PostalCatalogRefreshPayload{CountryCode: country})
		if err != nil {
			return nil, err
		}
		entryID, err := scheduler.Register(cron, task, asynq.Queue(queue))
		if err != nil {
			return nil, err
		}
		log.Info("postal refresh scheduled", "country", country, "cron", cron, "entryId", entryID)
	}

	return &Periodic{scheduler: scheduler, log: log}, nil
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (p *Periodic) Run(ctx context.Context) error {
	if p == nil || p.scheduler == nil {
		return nil
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	return p.scheduler.Run()
}
