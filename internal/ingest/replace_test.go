package ingest

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/broker-crm/internal/model"
)

func seededStore() *memStore {
	st := &memStore{}
	st.deals = []model.Deal{
		{ID: "d1", ParsedDeal: model.ParsedDeal{LegalCompanyName: "Old Co", Source: model.SourceDemo}},
		{ID: "d2", ParsedDeal: model.ParsedDeal{LegalCompanyName: "Old Co 2", Source: model.SourceDemo}},
		{ID: "d3", ParsedDeal: model.ParsedDeal{LegalCompanyName: "Keep Co", Source: model.SourceGmail}},
	}
	return st
}

func TestReplaceSource_DeletesAfterProductiveRun(t *testing.T) {
	st := seededStore()
	res := &model.RunResult{Processed: 3}

	ReplaceSource(context.Background(), st, model.SourceDemo, res, false)

	assert.Equal(t, int64(2), res.Replaced)
	assert.Len(t, st.deals, 1)
	assert.Equal(t, "Keep Co", st.deals[0].LegalCompanyName)
}

func TestReplaceSource_WithheldWhenRunProcessedNothing(t *testing.T) {
	st := seededStore()
	res := &model.RunResult{Processed: 0, Skipped: 5}

	ReplaceSource(context.Background(), st, model.SourceDemo, res, false)

	assert.Equal(t, int64(0), res.Replaced)
	assert.Len(t, st.deals, 3)
}

func TestReplaceSource_ForceDeletesRegardless(t *testing.T) {
	st := seededStore()
	res := &model.RunResult{Processed: 0}

	ReplaceSource(context.Background(), st, model.SourceDemo, res, true)

	assert.Equal(t, int64(2), res.Replaced)
	assert.Len(t, st.deals, 1)
}

func TestReplaceSource_DeleteFailureDoesNotFailRun(t *testing.T) {
	st := seededStore()
	st.deleteErr = eris.New("deadlock detected")
	res := &model.RunResult{Processed: 1}

	ReplaceSource(context.Background(), st, model.SourceDemo, res, false)

	assert.Equal(t, int64(0), res.Replaced)
	assert.Equal(t, 1, res.Processed)
}
