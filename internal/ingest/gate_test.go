package ingest

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/broker-crm/internal/model"
)

func formDeal(entryID string) *model.ParsedDeal {
	return &model.ParsedDeal{
		LegalCompanyName: "Doe LLC",
		Status:           model.StatusNew,
		Source:           model.SourceCognitoForms,
		CognitoEntryID:   entryID,
	}
}

func TestGate_InsertsNewDeal(t *testing.T) {
	st := &memStore{}
	gate := NewGate(st)

	out := gate.Admit(context.Background(), formDeal("E1"))

	assert.Equal(t, OutcomeProcessed, out)
	assert.Len(t, st.deals, 1)
}

func TestGate_SkipsExistingExternalID(t *testing.T) {
	st := &memStore{}
	gate := NewGate(st)

	assert.Equal(t, OutcomeProcessed, gate.Admit(context.Background(), formDeal("E1")))
	assert.Equal(t, OutcomeSkipped, gate.Admit(context.Background(), formDeal("E1")))
	assert.Len(t, st.deals, 1)
}

func TestGate_NoExternalIDAlwaysInserts(t *testing.T) {
	st := &memStore{}
	gate := NewGate(st)
	deal := &model.ParsedDeal{LegalCompanyName: "Anon Co", Source: model.SourceGmail}

	assert.Equal(t, OutcomeProcessed, gate.Admit(context.Background(), deal))
	assert.Equal(t, OutcomeProcessed, gate.Admit(context.Background(), deal))
	assert.Len(t, st.deals, 2)
}

func TestGate_ExistenceCheckErrorIsErrored(t *testing.T) {
	st := &memStore{existsErr: eris.New("connection refused")}
	gate := NewGate(st)

	out := gate.Admit(context.Background(), formDeal("E1"))

	assert.Equal(t, OutcomeErrored, out)
	assert.Empty(t, st.deals)
}

func TestGate_InsertErrorIsErrored(t *testing.T) {
	st := &memStore{insertErr: eris.New("disk full")}
	gate := NewGate(st)

	out := gate.Admit(context.Background(), formDeal("E1"))

	assert.Equal(t, OutcomeErrored, out)
}

func TestGate_ConstraintConflictIsSkip(t *testing.T) {
	// Simulates losing the check-then-insert race: the pre-check misses but
	// the store's unique index swallows the insert.
	st := &memStore{existsBlind: true}
	st.deals = append(st.deals, model.Deal{ID: "d0", ParsedDeal: *formDeal("E1")})
	gate := NewGate(st)

	out := gate.Admit(context.Background(), formDeal("E1"))

	assert.Equal(t, OutcomeSkipped, out)
	assert.Len(t, st.deals, 1)
}
