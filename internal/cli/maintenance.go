package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/gym-management/internal/config"
	"github.com/iliyamo/gym-management/internal/jobs"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/queue"
	"github.com/iliyamo/gym-management/internal/repository"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "migrate",
		Short:         "Apply the database schema",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.close()
			return a.migrate(cmd.Context())
		},
	}
}

// NewConsumeCommand creates the consume command, which runs only the
// event audit consumer.
func NewConsumeCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Append payment and enrollment events to audit logs",
		Long: `Consume the gym.payments and gym.enrollments queues and append one
line per event to payment.log and enrollment.log in the log directory.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			qc := config.LoadQueueConfig()
			if dir != "" {
				qc.LogDir = dir
			}
			l := newLogger(rootOpts)
			l.Infof("consuming %s and %s into %s", queue.PaymentQueue, queue.EnrollmentQueue, qc.LogDir)
			c := &queue.Consumer{URL: qc.URL, Dir: qc.LogDir, Log: l}
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "audit log directory (default EVENT_LOG_DIR)")
	return cmd
}

// NewExpireCommand creates the expire-memberships command.
func NewExpireCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "expire-memberships",
		Short:         "Expire active memberships past their end date once",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.close()
			svc, err := a.services()
			if err != nil {
				return err
			}
			n := jobs.RunMembershipExpiry(cmd.Context(), svc.memberships, a.log)
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d memberships\n", n)
			return nil
		},
	}
}

// CreateAdminOptions holds flags for the create-admin command.
type CreateAdminOptions struct {
	*RootOptions
	Username string
	Email    string
	Phone    string
	Password string
}

// NewCreateAdminCommand creates the create-admin command. Registration
// over HTTP always yields the user role, so admins are created here.
func NewCreateAdminCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateAdminOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "create-admin",
		Short:         "Create an administrator account",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.Password) < 6 {
				return fmt.Errorf("password must be at least 6 characters")
			}
			a, err := openApp(opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.close()
			id, err := a.store.Users.Create(cmd.Context(), repository.NewUser{
				Username: opts.Username,
				Email:    opts.Email,
				Phone:    opts.Phone,
				Password: opts.Password,
				Role:     model.RoleAdmin,
			}, a.cfg.BcryptCost)
			if errors.Is(err, repository.ErrUserExists) {
				return fmt.Errorf("username, email or phone already registered")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created with id %d\n", opts.Username, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Username, "username", "", "admin username (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "admin phone (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "admin password (required)")
	for _, f := range []string{"username", "email", "phone", "password"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
