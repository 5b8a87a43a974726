package scheduler

import (
	"context"
	"fmt"
	"strings"

	"backoffice_portal_backend/internal/location/client"
	"backoffice_portal_backend/platform/config"
	"backoffice_portal_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Worker consumes postal catalog refresh tasks: it drops the warm cache and
// re-fetches the postal code catalog for the requested country, so option
// lists stay fresh without a cold-cache penalty during office hours.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	clients map[string]*client.Client
	cache   *client.Cache
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, clients map[string]*client.Client, cache *client.Cache, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		clients: clients,
		cache:   cache,
		log:     log,
	}

	mux.HandleFunc(TaskPostalCatalogRefresh, w.handlePostalRefresh)

	return w, nil
}

func (w *Worker) handlePostalRefresh(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePostalCatalogRefreshPayload(task)
	if err != nil {
		return err
	}

	code := strings.ToUpper(strings.TrimSpace(payload.CountryCode))
	if code == "" {
		return fmt.Errorf("postal refresh payload has no country code")
	}

	cli := w.clientFor(code)
	if cli == nil {
		return fmt.Errorf("no provider client for country %s", code)
	}

	if w.cache != nil {
		w.cache.Flush()
	}

	options, err := cli.GetPostalCodesByCountry(ctx, code)
	if err != nil {
		w.log.Warn("postal catalog refresh failed", "country", code, "error", err)
		return err
	}

	w.log.Info("postal catalog refreshed", "country", code, "options", len(options))
	return nil
}

// clientFor prefers the client deployed for the country, falling back to the
// international one.
func (w *Worker) clientFor(code string) *client.Client {
	for _, cli := range w.clients {
		if strings.EqualFold(cli.CountryCode(), code) {
			return cli
		}
	}
	if cli, ok := w.clients["international"]; ok {
		return cli
	}
	for _, cli := range w.clients {
		return cli
	}
	return nil
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	return w.server.Run(w.mux)
}
