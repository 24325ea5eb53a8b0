package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/broker-crm/internal/model"
	"github.com/sells-group/broker-crm/internal/store"
)

// Outcome classifies what happened to a single item at the gate.
type Outcome int

const (
	OutcomeProcessed Outcome = iota
	OutcomeSkipped
	OutcomeErrored
)

// Gate sits between the channel parsers and the deal store. It performs the
// existence pre-check on the deal's external identity and inserts only when
// absent. The pre-check is a fast path; the store's unique indexes are the
// real duplicate guarantee, and a conflicting insert comes back as a skip.
type Gate struct {
	store store.Store
	log   *zap.Logger
}

func NewGate(st store.Store) *Gate {
	return &Gate{
		store: st,
		log:   zap.L().With(zap.String("component", "ingest.gate")),
	}
}

// Admit checks for an existing deal with the same external identity and
// inserts when none is found. Deals without any external identity are
// inserted unconditionally.
func (g *Gate) Admit(ctx context.Context, deal *model.ParsedDeal) Outcome {
	col, value, ok := deal.ExternalID()
	if ok {
		exists, err := g.store.ExistsByExternalID(ctx, col, value)
		if err != nil {
			g.log.Error("existence check failed",
				zap.String("column", string(col)),
				zap.String("value", value),
				zap.Error(err),
			)
			return OutcomeErrored
		}
		if exists {
			g.log.Debug("duplicate, skipping",
				zap.String("column", string(col)),
				zap.String("value", value),
			)
			return OutcomeSkipped
		}
	} else {
		g.log.Debug("no external identity, inserting anyway",
			zap.String("company", deal.LegalCompanyName),
			zap.String("source", deal.Source),
		)
	}

	id, inserted, err := g.store.InsertDeal(ctx, deal)
	if err != nil {
		g.log.Error("insert failed",
			zap.String("company", deal.LegalCompanyName),
			zap.Error(err),
		)
		return OutcomeErrored
	}
	if !inserted {
		// A concurrent run won the race; the unique index swallowed our row.
		g.log.Debug("concurrent duplicate, skipping",
			zap.String("column", string(col)),
			zap.String("value", value),
		)
		return OutcomeSkipped
	}

	g.log.Debug("deal inserted",
		zap.String("id", id),
		zap.String("company", deal.LegalCompanyName),
		zap.String("source", deal.Source),
	)
	return OutcomeProcessed
}
