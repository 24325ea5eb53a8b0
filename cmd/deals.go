package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/broker-crm/internal/model"
	"github.com/sells-group/broker-crm/internal/store"
)

var (
	dealsStatus   string
	dealsLoanType string
	dealsSource   string
	dealsSearch   string
	dealsPage     int
	dealsPageSize int
)

var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "Inspect deals in the pipeline",
}

var dealsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deals with optional filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("deals"); err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.DealFilter{
			Status:   model.DealStatus(dealsStatus),
			LoanType: model.LoanType(dealsLoanType),
			Source:   dealsSource,
			Search:   dealsSearch,
		}

		page, err := st.QueryDeals(cmd.Context(), filter, dealsPage, dealsPageSize)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "COMPANY\tCONTACT\tAMOUNT\tTYPE\tSTATUS\tSOURCE\tCREATED")
		for _, d := range page.Deals {
			fmt.Fprintf(w, "%s\t%s\t$%.0f\t%s\t%s\t%s\t%s\n",
				d.LegalCompanyName, d.ClientName, d.LoanAmountSought,
				d.LoanType, d.Status, d.Source, d.CreatedAt.Format("2006-01-02"))
		}
		w.Flush()

		fmt.Printf("\n%d of %d deals\n", len(page.Deals), page.Total)
		return nil
	},
}

func init() {
	dealsListCmd.Flags().StringVar(&dealsStatus, "status", "", "filter by pipeline status")
	dealsListCmd.Flags().StringVar(&dealsLoanType, "loan-type", "", "filter by loan product")
	dealsListCmd.Flags().StringVar(&dealsSource, "source", "", "filter by ingestion source")
	dealsListCmd.Flags().StringVar(&dealsSearch, "search", "", "substring search across company, contact, type, status")
	dealsListCmd.Flags().IntVar(&dealsPage, "page", 1, "page number")
	dealsListCmd.Flags().IntVar(&dealsPageSize, "page-size", 25, "page size")

	dealsCmd.AddCommand(dealsListCmd)
	rootCmd.AddCommand(dealsCmd)
}
