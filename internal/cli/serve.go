package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/gym-management/internal/config"
	"github.com/iliyamo/gym-management/internal/handler"
	"github.com/iliyamo/gym-management/internal/jobs"
	"github.com/iliyamo/gym-management/internal/middleware"
	"github.com/iliyamo/gym-management/internal/queue"
	"github.com/iliyamo/gym-management/internal/router"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Migrate bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API together with the membership expiry job and,
when RABBITMQ_CONSUMER_ENABLED is set, the event audit consumer.

Example:
  gym serve
  gym serve --migrate=false --log-level debug`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Migrate, "migrate", true, "apply the schema before serving")
	return cmd
}

func runServe(parent context.Context, opts *ServeOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	if opts.Migrate {
		if err := a.migrate(ctx); err != nil {
			return err
		}
	}
	svc, err := a.services()
	if err != nil {
		return err
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		a.log.Warnf("redis unavailable: caching and rate limiting disabled")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	e := router.New(router.Handlers{
		Health:     &handler.HealthHandler{DB: a.db, Redis: rdb},
		Auth:       handler.NewAuthHandler(a.cfg, a.store.Users, a.store.Tokens, svc.memberships),
		Class:      handler.NewClassHandler(svc.classes, svc.enrollments, middleware.NewCachePurger(cacheCfg, rdb)),
		Attendance: handler.NewAttendanceHandler(svc.attendance),
		Membership: handler.NewMembershipHandler(svc.memberships),
		Payment:    handler.NewPaymentHandler(svc.payments),
	}, router.Options{
		JWTSecret: a.cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:     middleware.NewRedisCache(cacheCfg, rdb),
	})
	e.Logger = a.log

	jobs.StartMembershipExpiryJob(ctx, a.cfg.Jobs, svc.memberships, a.log)

	if a.cfg.Queue.Enabled && a.cfg.Queue.ConsumerEnabled {
		c := &queue.Consumer{URL: a.cfg.Queue.URL, Dir: a.cfg.Queue.LogDir, Log: a.log}
		go func() {
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Errorf("event consumer stopped: %v", err)
			}
		}()
	}

	addr := ":" + a.cfg.Port
	errc := make(chan error, 1)
	go func() {
		a.log.Infof("listening on %s (env=%s, approval=%s)", addr, a.cfg.Env, a.cfg.ApprovalMode)
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
