package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/broker-crm/internal/model"
	"github.com/sells-group/broker-crm/internal/store"
)

// Assistant answers pipeline questions from deal statistics. Routing is a
// deterministic keyword match over the question text; no model calls.
type Assistant struct {
	store store.Store
}

func New(st store.Store) *Assistant {
	return &Assistant{store: st}
}

// Reply answers a free-text question about the deal pipeline.
func (a *Assistant) Reply(ctx context.Context, question string) (string, error) {
	q := strings.ToLower(question)

	switch {
	case containsAny(q, "status", "pipeline", "stage"):
		return a.statusBreakdown(ctx)
	case containsAny(q, "loan type", "product", "loan types"):
		return a.loanTypeBreakdown(ctx)
	case containsAny(q, "recent", "latest", "newest", "last"):
		return a.recentDeals(ctx)
	case containsAny(q, "how many", "count", "total"):
		return a.totals(ctx)
	case containsAny(q, "amount", "volume", "value"):
		return a.volume(ctx)
	default:
		return "I can summarize the pipeline by status or loan type, list recent deals, " +
			"or report totals and volume. Try asking \"how many deals do we have?\" or " +
			"\"show the pipeline by status\".", nil
	}
}

func containsAny(q string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

func (a *Assistant) statusBreakdown(ctx context.Context) (string, error) {
	var b strings.Builder
	b.WriteString("Pipeline by status:\n")
	for _, status := range model.AllDealStatuses() {
		page, err := a.store.QueryDeals(ctx, store.DealFilter{Status: status}, 1, 1)
		if err != nil {
			return "", eris.Wrap(err, "assist: status breakdown")
		}
		if page.Total > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", status, page.Total)
		}
	}
	return b.String(), nil
}

func (a *Assistant) loanTypeBreakdown(ctx context.Context) (string, error) {
	types := []model.LoanType{
		model.LoanWorkingCapital, model.LoanTermLoan, model.LoanCommercialRE,
		model.LoanEquipmentFinancing, model.LoanSBA7a, model.LoanSBA504,
		model.LoanMCA, model.LoanLineOfCredit, model.LoanFactoring,
		model.LoanPersonal, model.LoanBusiness, model.LoanUnknown,
	}

	var b strings.Builder
	b.WriteString("Deals by loan type:\n")
	for _, lt := range types {
		page, err := a.store.QueryDeals(ctx, store.DealFilter{LoanType: lt}, 1, 1)
		if err != nil {
			return "", eris.Wrap(err, "assist: loan type breakdown")
		}
		if page.Total > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", lt, page.Total)
		}
	}
	return b.String(), nil
}

func (a *Assistant) recentDeals(ctx context.Context) (string, error) {
	page, err := a.store.QueryDeals(ctx, store.DealFilter{}, 1, 5)
	if err != nil {
		return "", eris.Wrap(err, "assist: recent deals")
	}
	if len(page.Deals) == 0 {
		return "No deals yet.", nil
	}

	var b strings.Builder
	b.WriteString("Most recent deals:\n")
	for _, d := range page.Deals {
		fmt.Fprintf(&b, "- %s (%s, %s, $%.0f)\n",
			d.LegalCompanyName, d.Status, d.LoanType, d.LoanAmountSought)
	}
	return b.String(), nil
}

func (a *Assistant) totals(ctx context.Context) (string, error) {
	page, err := a.store.QueryDeals(ctx, store.DealFilter{}, 1, 1)
	if err != nil {
		return "", eris.Wrap(err, "assist: totals")
	}
	return fmt.Sprintf("There are %d deals in the pipeline.", page.Total), nil
}

func (a *Assistant) volume(ctx context.Context) (string, error) {
	var total float64
	var count int
	for page := 1; ; page++ {
		dp, err := a.store.QueryDeals(ctx, store.DealFilter{}, page, 100)
		if err != nil {
			return "", eris.Wrap(err, "assist: volume")
		}
		for _, d := range dp.Deals {
			total += d.LoanAmountSought
		}
		count = dp.Total
		if page*100 >= dp.Total || len(dp.Deals) == 0 {
			break
		}
	}
	return fmt.Sprintf("Total requested volume across %d deals: $%.0f.", count, total), nil
}
