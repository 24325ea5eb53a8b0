package gmailsrc

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/sells-group/broker-crm/internal/model"
)

const maxListPageSize = 500

// Credentials holds the OAuth material for a Gmail inbox.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// NewService builds an authenticated Gmail API service from a stored refresh
// token.
func NewService(ctx context.Context, creds Credentials) (*gmail.Service, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, eris.New("gmail: client id, client secret, and refresh token are required")
	}

	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	client := cfg.Client(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, eris.Wrap(err, "gmail: create service")
	}
	return svc, nil
}

// Source reads messages from a Gmail inbox.
type Source struct {
	svc *gmail.Service
	log *zap.Logger
}

func NewSource(svc *gmail.Service) *Source {
	return &Source{
		svc: svc,
		log: zap.L().With(zap.String("component", "source.gmail")),
	}
}

// ListMessageIDs returns the ids of messages matching query, newest first as
// the API returns them, capped at max (zero means no cap).
func (s *Source) ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error) {
	var ids []string
	pageToken := ""

	for {
		pageSize := int64(maxListPageSize)
		if max > 0 && max-int64(len(ids)) < pageSize {
			pageSize = max - int64(len(ids))
		}

		call := s.svc.Users.Messages.List("me").Q(query).MaxResults(pageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, eris.Wrap(err, "gmail: list messages")
		}
		for _, ref := range resp.Messages {
			ids = append(ids, ref.Id)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" || (max > 0 && int64(len(ids)) >= max) {
			break
		}
	}
	return ids, nil
}

// GetMessage fetches and decodes one full message.
func (s *Source) GetMessage(ctx context.Context, id string) (*model.RawEmail, error) {
	msg, err := s.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, eris.Wrapf(err, "gmail: get message %s", id)
	}
	return DecodeMessage(msg), nil
}

// DecodeMessage converts an API message into a RawEmail with a decoded body.
func DecodeMessage(msg *gmail.Message) *model.RawEmail {
	headers := headerMap(msg.Payload)

	raw := &model.RawEmail{
		MessageID: msg.Id,
		From:      headers["from"],
		Subject:   headers["subject"],
		Body:      extractBody(msg.Payload),
		SentAt:    messageSentAt(headers["date"], msg.InternalDate),
	}
	return raw
}

func headerMap(payload *gmail.MessagePart) map[string]string {
	out := make(map[string]string)
	if payload == nil {
		return out
	}
	for _, h := range payload.Headers {
		out[strings.ToLower(h.Name)] = h.Value
	}
	return out
}

// extractBody walks the MIME tree, preferring text/plain over text/html and
// descending one level into multipart containers.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if body := decodePartData(payload); body != "" {
		return body
	}

	var html string
	for _, part := range payload.Parts {
		switch {
		case strings.HasPrefix(part.MimeType, "text/plain"):
			if body := decodePartData(part); body != "" {
				return body
			}
		case strings.HasPrefix(part.MimeType, "text/html"):
			if html == "" {
				html = decodePartData(part)
			}
		case strings.HasPrefix(part.MimeType, "multipart/"):
			for _, nested := range part.Parts {
				if strings.HasPrefix(nested.MimeType, "text/plain") {
					if body := decodePartData(nested); body != "" {
						return body
					}
				}
				if strings.HasPrefix(nested.MimeType, "text/html") && html == "" {
					html = decodePartData(nested)
				}
			}
		}
	}
	return html
}

func decodePartData(part *gmail.MessagePart) string {
	if part == nil || part.Body == nil || part.Body.Data == "" {
		return ""
	}
	decoded, err := decodeBase64URL(part.Body.Data)
	if err != nil {
		zap.L().Debug("gmail: undecodable part body", zap.String("mime", part.MimeType), zap.Error(err))
		return ""
	}
	return decoded
}

// decodeBase64URL translates the base64url alphabet to standard base64, pads,
// and decodes.
func decodeBase64URL(data string) (string, error) {
	std := strings.NewReplacer("-", "+", "_", "/").Replace(data)
	if n := len(std) % 4; n != 0 {
		std += strings.Repeat("=", 4-n)
	}
	b, err := base64.StdEncoding.DecodeString(std)
	if err != nil {
		return "", eris.Wrap(err, "decode base64url")
	}
	return string(b), nil
}

var sentAtLayouts = []string{
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

// messageSentAt parses the Date header, falling back to the API's internal
// millisecond timestamp and finally to now.
func messageSentAt(dateHeader string, internalDate int64) time.Time {
	if dateHeader != "" {
		if idx := strings.Index(dateHeader, " ("); idx > 0 {
			dateHeader = dateHeader[:idx]
		}
		for _, layout := range sentAtLayouts {
			if t, err := time.Parse(layout, dateHeader); err == nil {
				return t.UTC()
			}
		}
	}
	if internalDate > 0 {
		return time.UnixMilli(internalDate).UTC()
	}
	return time.Now().UTC()
}
