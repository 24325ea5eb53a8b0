package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/broker-crm/internal/alias"
	"github.com/sells-group/broker-crm/internal/ingest"
	"github.com/sells-group/broker-crm/internal/model"
	"github.com/sells-group/broker-crm/internal/source/cognito"
	"github.com/sells-group/broker-crm/internal/source/gmailsrc"
	"github.com/sells-group/broker-crm/internal/store"
)

var (
	syncDays     int
	syncMax      int64
	syncForce    bool
	replaceGmail bool
	replaceForms bool
	syncTestMode bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull new loan applications into the deal store",
}

var syncFormsCmd = &cobra.Command{
	Use:   "forms",
	Short: "Sync Cognito Forms entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("sync-forms"); err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := runFormsSync(cmd.Context(), st)
		if err != nil {
			return err
		}

		if replaceGmail {
			ingest.ReplaceSource(cmd.Context(), st, model.SourceGmail, res, syncForce)
		}

		printRunResult("forms", res)
		return nil
	},
}

var syncEmailCmd = &cobra.Command{
	Use:   "email",
	Short: "Sync loan application emails from the notification inbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("sync-email"); err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := runEmailSync(cmd.Context(), st)
		if err != nil {
			return err
		}

		if replaceForms {
			ingest.ReplaceSource(cmd.Context(), st, model.SourceCognitoForms, res, syncForce)
		}

		printRunResult("email", res)
		return nil
	},
}

// applyAliasOverrides loads operator-supplied form key spellings before a
// sync run, when configured.
func applyAliasOverrides() error {
	if cfg.Sync.AliasFile == "" {
		return nil
	}
	o, err := alias.LoadOverrides(cfg.Sync.AliasFile)
	if err != nil {
		return err
	}
	return o.Apply()
}

func runFormsSync(ctx context.Context, st store.Store) (*model.RunResult, error) {
	if err := applyAliasOverrides(); err != nil {
		return nil, err
	}

	client, err := cognito.NewClient(cognito.Options{
		BaseURL:        cfg.Cognito.BaseURL,
		APIKey:         cfg.Cognito.APIKey,
		OrganizationID: cfg.Cognito.OrganizationID,
	})
	if err != nil {
		return nil, err
	}

	days := syncDays
	if days <= 0 {
		days = cfg.Sync.LookbackDays
	}
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	syncer := ingest.NewFormsSyncer(client, ingest.NewGate(st),
		cfg.Sync.IncludeForms, cfg.Sync.ExcludeForms)
	return syncer.Run(ctx, from, to)
}

func runEmailSync(ctx context.Context, st store.Store) (*model.RunResult, error) {
	if err := applyAliasOverrides(); err != nil {
		return nil, err
	}

	svc, err := gmailsrc.NewService(ctx, gmailsrc.Credentials{
		ClientID:     cfg.Gmail.ClientID,
		ClientSecret: cfg.Gmail.ClientSecret,
		RefreshToken: cfg.Gmail.RefreshToken,
	})
	if err != nil {
		return nil, err
	}

	query := cfg.Gmail.Query
	if syncDays > 0 {
		query = fmt.Sprintf("from:cognitoforms.com newer_than:%dd", syncDays)
	}
	max := syncMax
	if max <= 0 {
		max = cfg.Gmail.MaxResults
	}

	syncer := ingest.NewEmailSyncer(gmailsrc.NewSource(svc), ingest.NewGate(st), query, max)
	syncer.AllowAnySender = syncTestMode
	return syncer.Run(ctx)
}

func printRunResult(channel string, res *model.RunResult) {
	fmt.Printf("%s sync complete: %d processed, %d skipped, %d errors",
		channel, res.Processed, res.Skipped, res.Errors)
	if res.FormsChecked > 0 {
		fmt.Printf(", %d forms checked", res.FormsChecked)
	}
	if res.Replaced > 0 {
		fmt.Printf(", %d replaced", res.Replaced)
	}
	fmt.Println()
}

func init() {
	syncCmd.PersistentFlags().IntVar(&syncDays, "days", 0, "lookback window in days (default from config)")
	syncCmd.PersistentFlags().BoolVar(&syncForce, "force", false, "run source replacement even when nothing was processed")

	syncFormsCmd.Flags().BoolVar(&replaceGmail, "replace-gmail", false, "delete Gmail-sourced deals after the run")

	syncEmailCmd.Flags().Int64Var(&syncMax, "max", 0, "maximum messages to fetch (default from config)")
	syncEmailCmd.Flags().BoolVar(&replaceForms, "replace-forms", false, "delete CognitoForms-sourced deals after the run")
	syncEmailCmd.Flags().BoolVar(&syncTestMode, "test-mode", false, "accept messages from any sender")

	syncCmd.AddCommand(syncFormsCmd)
	syncCmd.AddCommand(syncEmailCmd)
	rootCmd.AddCommand(syncCmd)
}
