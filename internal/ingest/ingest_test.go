package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/broker-crm/internal/model"
	"github.com/sells-group/broker-crm/internal/store"
)

// memStore is an in-memory Store for orchestrator tests.
type memStore struct {
	deals []model.Deal

	insertErr error
	existsErr error
	deleteErr error

	// existsBlind makes the pre-check always report "not found" so the
	// insert-conflict path can be exercised.
	existsBlind bool
}

var _ store.Store = (*memStore)(nil)

func (m *memStore) InsertDeal(_ context.Context, deal *model.ParsedDeal) (string, bool, error) {
	if m.insertErr != nil {
		return "", false, m.insertErr
	}
	if col, value, ok := deal.ExternalID(); ok {
		for _, d := range m.deals {
			if m.externalValue(&d.ParsedDeal, col) == value && d.Source == deal.Source {
				return "", false, nil
			}
		}
	}
	id := fmt.Sprintf("d%d", len(m.deals)+1)
	m.deals = append(m.deals, model.Deal{ID: id, ParsedDeal: *deal})
	return id, true, nil
}

func (m *memStore) ExistsByExternalID(_ context.Context, col model.ExternalIDColumn, value string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	if m.existsBlind {
		return false, nil
	}
	for _, d := range m.deals {
		if m.externalValue(&d.ParsedDeal, col) == value {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) externalValue(p *model.ParsedDeal, col model.ExternalIDColumn) string {
	if col == model.ColGmailMessageID {
		return p.GmailMessageID
	}
	return p.CognitoEntryID
}

func (m *memStore) DeleteBySource(_ context.Context, source string) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	var kept []model.Deal
	var n int64
	for _, d := range m.deals {
		if d.Source == source {
			n++
			continue
		}
		kept = append(kept, d)
	}
	m.deals = kept
	return n, nil
}

func (m *memStore) QueryDeals(_ context.Context, _ store.DealFilter, _, _ int) (*store.DealPage, error) {
	return &store.DealPage{Deals: m.deals, Total: len(m.deals)}, nil
}

func (m *memStore) CountBySource(_ context.Context, source string) (int, error) {
	n := 0
	for _, d := range m.deals {
		if d.Source == source {
			n++
		}
	}
	return n, nil
}

func (m *memStore) UpdateStatus(_ context.Context, dealID string, status model.DealStatus) error {
	for i := range m.deals {
		if m.deals[i].ID == dealID {
			m.deals[i].Status = status
			return nil
		}
	}
	return eris.Errorf("deal not found: %s", dealID)
}

func (m *memStore) UpdateNotes(_ context.Context, dealID string, notes string) error {
	for i := range m.deals {
		if m.deals[i].ID == dealID {
			m.deals[i].NotesInternal = notes
			return nil
		}
	}
	return eris.Errorf("deal not found: %s", dealID)
}

func (m *memStore) GetSetting(context.Context, string) (string, error) { return "", nil }
func (m *memStore) PutSetting(context.Context, string, string) error   { return nil }
func (m *memStore) Migrate(context.Context) error                      { return nil }
func (m *memStore) Close() error                                       { return nil }

// fakeFormsSource returns canned forms and entries.
type fakeFormsSource struct {
	forms      []model.Form
	entries    map[string][]model.FormEntry
	listErr    error
	entriesErr map[string]error
}

func (f *fakeFormsSource) ListForms(context.Context) ([]model.Form, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.forms, nil
}

func (f *fakeFormsSource) ListEntries(_ context.Context, formID string, _, _ time.Time) ([]model.FormEntry, error) {
	if err := f.entriesErr[formID]; err != nil {
		return nil, err
	}
	return f.entries[formID], nil
}

// fakeEmailSource returns canned messages.
type fakeEmailSource struct {
	messages map[string]*model.RawEmail
	order    []string
	listErr  error
	getErr   map[string]error
}

func (f *fakeEmailSource) ListMessageIDs(context.Context, string, int64) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.order, nil
}

func (f *fakeEmailSource) GetMessage(_ context.Context, id string) (*model.RawEmail, error) {
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	return f.messages[id], nil
}
