package cognito

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/broker-crm/internal/model"
)

// DefaultBaseURL is the Cognito Forms public API root.
const DefaultBaseURL = "https://www.cognitoforms.com/api"

const entriesPageSize = 100

// Options configures the Cognito Forms client.
type Options struct {
	BaseURL        string
	APIKey         string
	OrganizationID string
	Timeout        time.Duration
	MaxRetries     int
	// RequestsPerSec caps outbound API calls. Zero means the default of 5.
	RequestsPerSec float64
}

// Client talks to the Cognito Forms API with bearer auth, rate limiting, and
// retry on transient failures.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	org        string
	maxRetries int
	limiter    *rate.Limiter
	log        *zap.Logger
}

// NewClient creates a Cognito Forms client. APIKey and OrganizationID are
// required; everything else has defaults.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, eris.New("cognito: api key is required")
	}
	if opts.OrganizationID == "" {
		return nil, eris.New("cognito: organization id is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	rps := opts.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		org:        opts.OrganizationID,
		maxRetries: opts.MaxRetries,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(math.Ceil(rps))),
		log:        zap.L().With(zap.String("component", "source.cognito")),
	}, nil
}

// ListForms fetches the organization's form definitions.
func (c *Client) ListForms(ctx context.Context) ([]model.Form, error) {
	endpoint := fmt.Sprintf("%s/organizations/%s/forms", c.baseURL, url.PathEscape(c.org))

	var forms []model.Form
	if err := c.getJSON(ctx, endpoint, &forms); err != nil {
		return nil, eris.Wrap(err, "cognito: list forms")
	}
	return forms, nil
}

// ListEntries fetches a form's entries within [from, to], walking pages until
// a short page signals the end.
func (c *Client) ListEntries(ctx context.Context, formID string, from, to time.Time) ([]model.FormEntry, error) {
	base := fmt.Sprintf("%s/organizations/%s/forms/%s/entries",
		c.baseURL, url.PathEscape(c.org), url.PathEscape(formID))

	var entries []model.FormEntry
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("pageSize", strconv.Itoa(entriesPageSize))
		if !from.IsZero() {
			q.Set("dateFrom", from.UTC().Format(time.RFC3339))
		}
		if !to.IsZero() {
			q.Set("dateTo", to.UTC().Format(time.RFC3339))
		}

		var raw []map[string]any
		if err := c.getJSON(ctx, base+"?"+q.Encode(), &raw); err != nil {
			return nil, eris.Wrapf(err, "cognito: list entries for form %s", formID)
		}

		for _, m := range raw {
			entries = append(entries, entryFromPayload(formID, m))
		}
		if len(raw) < entriesPageSize {
			break
		}
	}
	return entries, nil
}

// entryFromPayload lifts the identifying fields out of a raw entry payload
// while keeping the whole payload intact for the aliaser.
func entryFromPayload(formID string, m map[string]any) model.FormEntry {
	e := model.FormEntry{
		FormID: formID,
		Fields: m,
	}
	if v, ok := m["Id"].(string); ok {
		e.ID = v
	}
	switch v := m["Number"].(type) {
	case float64:
		e.Number = int(v)
	case int:
		e.Number = v
	}
	if v, ok := m["DateCreated"].(string); ok {
		e.DateCreated = v
	}
	return e
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	var lastErr error
	for attempt := range c.maxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.log.Warn("request failed, retrying",
				zap.String("url", endpoint),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			c.backoff(ctx, attempt)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			_ = resp.Body.Close()
			return eris.Errorf("cognito: auth rejected with status %d", resp.StatusCode)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, endpoint)
			c.log.Warn("transient status, retrying",
				zap.String("url", endpoint),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			c.backoff(ctx, attempt)
			continue
		case resp.StatusCode != http.StatusOK:
			_ = resp.Body.Close()
			return eris.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		_ = resp.Body.Close()
		if err != nil {
			return eris.Wrap(err, "decode response")
		}
		return nil
	}
	return eris.Wrap(lastErr, "all retries exhausted")
}

func (c *Client) backoff(ctx context.Context, attempt int) {
	base := time.Second
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
