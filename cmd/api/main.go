// @title Event RSVP API
// @version 1.0
// @description Reservation admission and check-in for hosted events.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"eventrsvp/config"
	_ "eventrsvp/docs"
	"eventrsvp/internal/adapters/auth"
	"eventrsvp/internal/adapters/broker"
	"eventrsvp/internal/adapters/email"
	"eventrsvp/internal/clock"
	httpdelivery "eventrsvp/internal/delivery/http"
	"eventrsvp/internal/delivery/http/controllers"
	"eventrsvp/internal/delivery/http/middleware"
	"eventrsvp/internal/domain"
	"eventrsvp/internal/repository/memory"
	"eventrsvp/internal/repository/postgres"
	"eventrsvp/internal/services"
	"eventrsvp/internal/telemetry"
	"eventrsvp/migrations"
)

const shutdownTimeout = 15 * time.Second

type stores struct {
	events    domain.EventRepository
	store     domain.ReservationStore
	directory domain.AttendeeDirectory
	close     func() error
}

func main() {
	logger := config.NewLogger()
	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTel.Enabled,
		Endpoint:    cfg.OTel.Endpoint,
		ServiceName: cfg.OTel.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Email.Provider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		SES: email.SESConfig{
			Region:             cfg.Email.SESRegion,
			AccessKeyID:        cfg.Email.AWSAccessKeyID,
			SecretAccessKey:    cfg.Email.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.Email.SESInsecureSkipVerify,
		},
		MailerSend: email.MailerSendConfig{APIKey: cfg.Email.MailerSendAPIKey},
	}, logger)
	if err != nil {
		return fmt.Errorf("create mailer: %w", err)
	}
	emailService := services.NewEmailService(mailer, email.NewTemplateRenderer(), logger)

	publisher, closeNotify, err := openNotifications(ctx, cfg, emailService, logger)
	if err != nil {
		return err
	}
	defer closeNotify()

	clk := clock.NewSystem()
	eventService := services.NewEventService(st.events, st.store, clk, cfg.RequestTimeout)
	rsvpService := services.NewRSVPService(st.events, st.store, st.directory, publisher, clk, logger, cfg.RequestTimeout,
		services.WithCheckInAnyDay(cfg.CheckInAnyDay))

	router := httpdelivery.NewRouter(
		controllers.NewEventController(logger, eventService),
		controllers.NewRSVPController(logger, rsvpService),
		auth.NewJWTVerifier(cfg.JWTSecret),
		logger,
	)
	handler := middleware.LoggingMiddleware(logger, middleware.CORS(cfg.CORSOrigins, router))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "store", cfg.StoreDriver, "notify", cfg.Notify.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.StoreDriver == config.StoreMemory {
		seed, err := memory.ParseSeed(cfg.SeedAttendees)
		if err != nil {
			return nil, fmt.Errorf("parse SEED_ATTENDEES: %w", err)
		}
		logger.Warn("using in-memory store; data is lost on restart", "seeded_attendees", len(seed))
		return &stores{
			events:    memory.NewEventRepository(),
			store:     memory.NewReservationStore(),
			directory: memory.NewDirectory(seed...),
			close:     func() error { return nil },
		}, nil
	}

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrations.Apply(pctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &stores{
		events:    postgres.NewEventRepository(db),
		store:     postgres.NewReservationStore(db),
		directory: postgres.NewAttendeeDirectory(db),
		close:     db.Close,
	}, nil
}

// openNotifications returns the publisher services use and a function that drains
// and stops the transport.
func openNotifications(ctx context.Context, cfg *config.Config, handler domain.NotificationHandler, logger *slog.Logger) (domain.NotificationPublisher, func(), error) {
	if cfg.Notify.Driver == config.NotifyRabbitMQ {
		mq, err := broker.NewRabbitMQ(broker.RabbitMQConfig{
			URL:        cfg.Notify.RabbitMQURL,
			Exchange:   cfg.Notify.Exchange,
			Queue:      cfg.Notify.Queue,
			NumWorkers: cfg.Notify.Workers,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		if err := mq.Consume(ctx, handler); err != nil {
			_ = mq.Close()
			return nil, nil, fmt.Errorf("start notification consumer: %w", err)
		}
		return mq, func() {
			if err := mq.Close(); err != nil {
				logger.Warn("close rabbitmq", "error", err)
			}
		}, nil
	}

	q := broker.NewQueue(handler, broker.QueueConfig{
		Size:       cfg.Notify.QueueSize,
		NumWorkers: cfg.Notify.Workers,
	}, logger)
	q.Start()
	return q, func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := q.Close(sctx); err != nil {
			logger.Warn("notification queue did not drain", "error", err)
		}
	}, nil
}
