package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/gym-management/internal/config"
	"github.com/iliyamo/gym-management/internal/database"
	"github.com/iliyamo/gym-management/internal/queue"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/service"
)

// app holds what every command needs once configuration is read.
type app struct {
	cfg   config.Config
	log   *log.Logger
	db    *sql.DB
	store *repository.Store
}

func openApp(opts *RootOptions) (*app, error) {
	cfg := config.Load()
	l := newLogger(opts)
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &app{cfg: cfg, log: l, db: db, store: repository.NewStore(db)}, nil
}

func (a *app) close() { _ = a.db.Close() }

func (a *app) migrate(ctx context.Context) error {
	if err := database.Migrate(ctx, a.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.log.Infof("schema applied to %s", a.cfg.DBName)
	return nil
}

// services wires the business layer. Events are published to RabbitMQ
// when the queue is enabled.
type services struct {
	classes     *service.ClassService
	enrollments *service.EnrollmentService
	attendance  *service.AttendanceService
	memberships *service.MembershipService
	payments    *service.PaymentService
}

func (a *app) services() (*services, error) {
	mode, err := service.ParseApprovalMode(a.cfg.ApprovalMode)
	if err != nil {
		return nil, err
	}
	deps := service.Deps{Store: a.store, Log: a.log}
	if a.cfg.Queue.Enabled {
		deps.Events = queue.NewPublisher(a.cfg.Queue.URL)
	}
	return &services{
		classes:     service.NewClassService(deps),
		enrollments: service.NewEnrollmentService(deps),
		attendance:  service.NewAttendanceService(deps),
		memberships: service.NewMembershipService(deps),
		payments:    service.NewPaymentService(deps, mode),
	}, nil
}
