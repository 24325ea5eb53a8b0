package cognito

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		OrganizationID: "org-1",
		MaxRetries:     2,
		RequestsPerSec: 1000,
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Options{OrganizationID: "org-1"})
	assert.Error(t, err)

	_, err = NewClient(Options{APIKey: "k"})
	assert.Error(t, err)
}

func TestClient_ListForms(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/organizations/org-1/forms", r.URL.Path)
		fmt.Fprint(w, `[{"Id":"f1","Name":"Loan Application"},{"Id":"f2","Name":"Contact Us"}]`)
	}))

	forms, err := c.ListForms(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	require.Len(t, forms, 2)
	assert.Equal(t, "Loan Application", forms[0].Name)
}

func TestClient_ListEntries_KeepsRawPayload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organizations/org-1/forms/f1/entries", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.NotEmpty(t, r.URL.Query().Get("dateFrom"))
		fmt.Fprint(w, `[{"Id":"E1","Number":7,"DateCreated":"2024-02-01T10:00:00Z","BusinessName":"Doe LLC","Fields":{"Email":"j@doe.com"}}]`)
	}))

	entries, err := c.ListEntries(context.Background(), "f1",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Now())
	require.NoError(t, err)

	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "E1", e.ID)
	assert.Equal(t, 7, e.Number)
	assert.Equal(t, "f1", e.FormID)
	assert.Equal(t, "2024-02-01T10:00:00Z", e.DateCreated)
	assert.Equal(t, "Doe LLC", e.Fields["BusinessName"])
}

func TestClient_AuthRejectionIsNotRetried(t *testing.T) {
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.ListForms(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth rejected")
	assert.Equal(t, 1, calls)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[]`)
	}))

	forms, err := c.ListForms(context.Background())
	require.NoError(t, err)
	assert.Empty(t, forms)
	assert.Equal(t, 2, calls)
}
