package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lead-dispatch/internal/api"
	"lead-dispatch/internal/common/aws"
	"lead-dispatch/internal/common/camunda"
	"lead-dispatch/internal/common/config"
	"lead-dispatch/internal/common/database"
	httpclient "lead-dispatch/internal/common/http"
	"lead-dispatch/internal/common/logger"
	"lead-dispatch/internal/common/observability"
	"lead-dispatch/internal/dispatch"
	"lead-dispatch/internal/handoff"
	"lead-dispatch/internal/pixel"
	"lead-dispatch/internal/replay"

	facebookcapi "lead-dispatch/internal/sinks/conversion/facebook-capi"
	stapeevent "lead-dispatch/internal/sinks/conversion/stape-event"
	salesalert "lead-dispatch/internal/sinks/notify/sales-alert"
	telegrammessage "lead-dispatch/internal/sinks/notify/telegram-message"
	postgresinsert "lead-dispatch/internal/sinks/store/postgres-insert"
	supabaseinsert "lead-dispatch/internal/sinks/store/supabase-insert"

	dispatchlead "lead-dispatch/internal/workers/lead/dispatch-lead"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// closers run in reverse order on shutdown.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting lead dispatcher",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	if err := run(cfg, zapLog, log); err != nil {
		zapLog.Fatal("lead dispatcher stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLog *zap.Logger, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cleanup closers
	defer cleanup.run()

	obs, err := observability.New(observability.Options{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
	})
	if err != nil {
		zapLog.Warn("observability disabled", zap.Error(err))
	}
	cleanup.add(func() { obs.Shutdown(context.Background()) })

	sinks, err := buildSinks(ctx, cfg, zapLog, log, &cleanup)
	if err != nil {
		return err
	}

	checks := map[string]api.HealthChecker{}

	// --- Conversion handoff (Redis) ---
	var handoffStore *handoff.Store
	if cfg.Database.Redis.Address != "" {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		err = retryWithBackoff(func() error { return rdb.Ping(ctx) }, 5, time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Warn("redis unavailable, conversion handoff disabled", zap.Error(err))
			_ = rdb.Close()
		} else {
			cleanup.add(func() { _ = rdb.Close() })
			handoffStore = handoff.NewStore(rdb.Client, time.Duration(cfg.Handoff.TTL)*time.Second)
			checks["redis"] = rdb.Ping
		}
	}

	// --- Replay journal (Elasticsearch) ---
	var recorder dispatch.FailureRecorder = replay.Nop{}
	if cfg.Replay.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
		if err != nil {
			return err
		}
		err = retryWithBackoff(func() error { return es.Ping(ctx) }, 5, time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, replay journal disabled", zap.Error(err))
		} else {
			recorder = replay.NewJournal(es.Client, cfg.Replay.Index)
			checks["elasticsearch"] = es.Ping
		}
	}

	coordinator := dispatch.NewCoordinator(dispatch.Options{
		Sinks:    sinks,
		Timeout:  config.GetDuration(cfg.Dispatch.SinkTimeout),
		Required: cfg.Dispatch.Required,
		Logger:   log,
		Recorder: recorder,
		Obs:      obs,
	})

	var saver dispatch.HandoffSaver
	var taker api.HandoffTaker
	if handoffStore != nil {
		saver, taker = handoffStore, handoffStore
	}
	submitter := dispatch.NewSubmitter(coordinator, saver, log)

	handlers := api.NewHandlers(submitter, taker, pixel.Conversion{
		Value:      cfg.Conversion.Value,
		Currency:   cfg.Conversion.Currency,
		CryptoOnly: cfg.Conversion.CryptoOnly,
	}, log)
	for name, check := range checks {
		handlers.AddHealthCheck(name, check)
	}

	// --- Zeebe worker ---
	if cfg.Camunda.Enabled {
		var zc *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zc, err = camunda.NewClient(cfg.Camunda)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			return err
		}
		cleanup.add(func() { _ = zc.Close() })
		handlers.AddHealthCheck("camunda", zc.HealthCheck)

		worker, err := dispatchlead.NewHandler(dispatchlead.HandlerOptions{
			AppConfig: cfg,
			Camunda:   zc,
			Submitter: submitter,
			Logger:    log,
		})
		if err != nil {
			return err
		}
		if err := worker.Register(); err != nil {
			return err
		}
		cleanup.add(worker.Close)
	}

	// --- HTTP intake ---
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handlers, cfg.Server.AllowedOrigins),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		zapLog.Info("intake API listening",
			zap.String("addr", srv.Addr),
			zap.Int("sinks", len(sinks)),
		)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		zapLog.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildSinks creates every sink in store, notify, convert order. Sinks without
// credentials are still registered; they report a skip on each lead.
func buildSinks(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, log logger.Logger, cleanup *closers) ([]dispatch.Sink, error) {
	client := httpclient.NewClient(config.GetDuration(cfg.Dispatch.SinkTimeout))
	var sinks []dispatch.Sink

	sinks = append(sinks, supabaseinsert.New(supabaseinsert.ConfigFrom(cfg.Sinks.Supabase), client, log))

	if cfg.Sinks.Postgres.Enabled {
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}
		cleanup.add(func() { _ = pg.Close() })

		sink, err := postgresinsert.New(postgresinsert.ConfigFrom(cfg.Sinks.Postgres), pg.DB, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	sinks = append(sinks, telegrammessage.New(telegrammessage.ConfigFrom(cfg.Sinks.Telegram), client, log))

	if alert := cfg.Sinks.SalesAlert; alert.ToEmail != "" || alert.SMSPhone != "" {
		var email salesalert.EmailSender
		var sms salesalert.SMSSender
		if alert.ToEmail != "" {
			ses, err := aws.NewSESClient(ctx, alert.Region)
			if err != nil {
				return nil, err
			}
			email = ses
		}
		if alert.SMSPhone != "" {
			sns, err := aws.NewSNSClient(ctx, alert.Region)
			if err != nil {
				return nil, err
			}
			sms = sns
		}
		sinks = append(sinks, salesalert.New(salesalert.ConfigFrom(alert), email, sms, log))
	}

	sinks = append(sinks,
		facebookcapi.New(facebookcapi.ConfigFrom(cfg.Sinks.Facebook, cfg.Conversion), client, log),
		stapeevent.New(stapeevent.ConfigFrom(cfg.Sinks.Stape, cfg.Conversion), client, log),
	)

	return sinks, nil
}
