package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/broker-crm/internal/model"
	"github.com/sells-group/broker-crm/internal/server"
	"github.com/sells-group/broker-crm/internal/settings"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		state, err := settings.Load(ctx, st)
		if err != nil {
			return err
		}

		var syncForms, syncEmail server.SyncFunc
		if cfg.Cognito.APIKey != "" && cfg.Cognito.OrganizationID != "" {
			syncForms = func(ctx context.Context) (*model.RunResult, error) {
				return runFormsSync(ctx, st)
			}
		}
		if cfg.Gmail.RefreshToken != "" {
			syncEmail = func(ctx context.Context) (*model.RunResult, error) {
				return runEmailSync(ctx, st)
			}
		}

		srv := server.New(server.Options{
			Store:     st,
			State:     state,
			SyncForms: syncForms,
			SyncEmail: syncEmail,
			APIToken:  cfg.Server.APIToken,
		})

		// The persisted interval overrides the config cron expression, so the
		// schedule can be changed through the settings API without a redeploy.
		schedule := cfg.Sync.Schedule
		if m := state.Interval(); m > 0 {
			schedule = fmt.Sprintf("@every %dm", m)
		}
		if schedule != "" {
			c := cron.New()
			err := c.AddFunc(schedule, func() {
				if !state.AutoSync() {
					return
				}
				scheduledSync(ctx, state, syncForms, syncEmail)
			})
			if err != nil {
				return err
			}
			c.Start()
			defer c.Stop()
			zap.L().Info("sync scheduler started", zap.String("schedule", schedule))
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		return srv.Start(ctx, port)
	},
}

// scheduledSync runs both configured channels back to back. Failures are
// logged and do not stop the scheduler.
func scheduledSync(ctx context.Context, state *settings.State, syncForms, syncEmail server.SyncFunc) {
	log := zap.L().With(zap.String("component", "scheduler"))

	if syncForms != nil {
		if res, err := syncForms(ctx); err != nil {
			log.Error("scheduled forms sync failed", zap.Error(err))
		} else {
			state.RecordFormsRun(res)
			log.Info("scheduled forms sync complete",
				zap.Int("processed", res.Processed),
				zap.Int("skipped", res.Skipped),
				zap.Int("errors", res.Errors),
			)
		}
	}

	if syncEmail != nil {
		if res, err := syncEmail(ctx); err != nil {
			log.Error("scheduled email sync failed", zap.Error(err))
		} else {
			state.RecordEmailRun(res)
			log.Info("scheduled email sync complete",
				zap.Int("processed", res.Processed),
				zap.Int("skipped", res.Skipped),
				zap.Int("errors", res.Errors),
			)
		}
	}

	if err := state.Save(ctx); err != nil {
		log.Warn("failed to persist sync state", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
