package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/broker-crm/internal/model"
	"github.com/sells-group/broker-crm/internal/settings"
	"github.com/sells-group/broker-crm/internal/store"
)

// stubStore backs the handlers with a fixed deal slice and a settings map.
type stubStore struct {
	store.Store
	deals     []model.Deal
	settings  map[string]string
	statusErr error
}

func newStubStore() *stubStore {
	return &stubStore{
		settings: make(map[string]string),
		deals: []model.Deal{
			{ID: "d1", ParsedDeal: model.ParsedDeal{
				LegalCompanyName: "Doe LLC", Status: model.StatusNew,
				LoanType: model.LoanWorkingCapital, LoanAmountSought: 50000,
			}},
		},
	}
}

func (s *stubStore) QueryDeals(_ context.Context, filter store.DealFilter, _, _ int) (*store.DealPage, error) {
	var matched []model.Deal
	for _, d := range s.deals {
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		matched = append(matched, d)
	}
	return &store.DealPage{Deals: matched, Total: len(matched)}, nil
}

func (s *stubStore) UpdateStatus(_ context.Context, dealID string, status model.DealStatus) error {
	if s.statusErr != nil {
		return s.statusErr
	}
	for i := range s.deals {
		if s.deals[i].ID == dealID {
			s.deals[i].Status = status
			return nil
		}
	}
	return eris.Errorf("deal not found: %s", dealID)
}

func (s *stubStore) UpdateNotes(_ context.Context, dealID, notes string) error {
	for i := range s.deals {
		if s.deals[i].ID == dealID {
			s.deals[i].NotesInternal = notes
			return nil
		}
	}
	return eris.Errorf("deal not found: %s", dealID)
}

func (s *stubStore) GetSetting(_ context.Context, key string) (string, error) {
	return s.settings[key], nil
}

func (s *stubStore) PutSetting(_ context.Context, key, value string) error {
	s.settings[key] = value
	return nil
}

func newTestServer(t *testing.T, opts Options) http.Handler {
	t.Helper()
	if opts.Store == nil {
		opts.Store = newStubStore()
	}
	if opts.State == nil {
		state, err := settings.Load(context.Background(), opts.Store)
		require.NoError(t, err)
		opts.State = state
	}
	return New(opts).Router()
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestAuth_MissingTokenIsRejected(t *testing.T) {
	h := newTestServer(t, Options{APIToken: "secret"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/deals", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ValidTokenPasses(t *testing.T) {
	h := newTestServer(t, Options{APIToken: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/api/deals", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSyncForms_ReturnsRunResult(t *testing.T) {
	st := newStubStore()
	h := newTestServer(t, Options{
		Store: st,
		SyncForms: func(context.Context) (*model.RunResult, error) {
			return &model.RunResult{Processed: 4, Skipped: 2}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync/forms", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var res model.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 2, res.Skipped)
	// Run outcome is persisted via the settings state.
	assert.Contains(t, st.settings["sync_state"], `"processed":4`)
}

func TestSyncEmail_FailureIsBadGateway(t *testing.T) {
	h := newTestServer(t, Options{
		SyncEmail: func(context.Context) (*model.RunResult, error) {
			return nil, eris.New("invalid grant")
		},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync/email", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSync_UnconfiguredChannel(t *testing.T) {
	h := newTestServer(t, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync/forms", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListDeals_FiltersByStatus(t *testing.T) {
	h := newTestServer(t, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/deals?status=New", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var page store.DealPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/deals?status=Funded", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 0, page.Total)
}

func TestUpdateStatus(t *testing.T) {
	st := newStubStore()
	h := newTestServer(t, Options{Store: st})

	body := strings.NewReader(`{"status":"Qualified"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/deals/d1/status", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusQualified, st.deals[0].Status)
}

func TestUpdateStatus_UnknownStatusIsBadRequest(t *testing.T) {
	h := newTestServer(t, Options{})

	body := strings.NewReader(`{"status":"Teleported"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/deals/d1/status", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStatus_MissingDealIs404(t *testing.T) {
	h := newTestServer(t, Options{})

	body := strings.NewReader(`{"status":"Qualified"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/deals/nope/status", body))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateNotes(t *testing.T) {
	st := newStubStore()
	h := newTestServer(t, Options{Store: st})

	body := strings.NewReader(`{"notes":"called, follow up Friday"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/deals/d1/notes", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "called, follow up Friday", st.deals[0].NotesInternal)
}

func TestAssist(t *testing.T) {
	h := newTestServer(t, Options{})

	body := strings.NewReader(`{"message":"how many deals do we have?"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/assist", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1 deals")
}

func TestAssist_EmptyMessageIsBadRequest(t *testing.T) {
	h := newTestServer(t, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/assist", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettings_Roundtrip(t *testing.T) {
	st := newStubStore()
	h := newTestServer(t, Options{Store: st})

	body := strings.NewReader(`{"auto_sync_enabled":true,"interval_minutes":30}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/settings", body))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	assert.Contains(t, rec.Body.String(), `"auto_sync_enabled":true`)
	assert.Contains(t, rec.Body.String(), `"interval_minutes":30`)
}

func TestSettings_NegativeIntervalRejected(t *testing.T) {
	h := newTestServer(t, Options{Store: newStubStore()})

	body := strings.NewReader(`{"interval_minutes":-5}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/settings", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
