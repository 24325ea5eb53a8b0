package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/broker-crm/internal/model"
	"github.com/sells-group/broker-crm/internal/parse"
)

// EmailSource lists message ids matching a search query and fetches decoded
// messages one at a time.
type EmailSource interface {
	ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error)
	GetMessage(ctx context.Context, id string) (*model.RawEmail, error)
}

// EmailSyncer is the email-channel orchestrator: it lists matching message
// ids, fetches and parses each message, and funnels results through the
// dedup gate.
type EmailSyncer struct {
	source EmailSource
	gate   *Gate
	query  string
	max    int64

	// AllowAnySender disables the notification-sender admission gate so
	// hand-crafted test messages can flow through the pipeline.
	AllowAnySender bool

	log *zap.Logger
}

func NewEmailSyncer(source EmailSource, gate *Gate, query string, max int64) *EmailSyncer {
	return &EmailSyncer{
		source: source,
		gate:   gate,
		query:  query,
		max:    max,
		log:    zap.L().With(zap.String("component", "ingest.email")),
	}
}

// Run lists message ids for the configured query and processes each message
// sequentially. A failure to list ids aborts the run; a failure to fetch one
// message only increments the error tally. Messages that fail the sender
// gate or parse to nothing usable are tallied as skips.
func (s *EmailSyncer) Run(ctx context.Context) (*model.RunResult, error) {
	ids, err := s.source.ListMessageIDs(ctx, s.query, s.max)
	if err != nil {
		return nil, eris.Wrap(err, "email sync: list messages")
	}

	s.log.Info("messages listed", zap.Int("count", len(ids)), zap.String("query", s.query))

	res := &model.RunResult{}

	for _, id := range ids {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		msg, err := s.source.GetMessage(ctx, id)
		if err != nil {
			s.log.Error("get message failed", zap.String("message_id", id), zap.Error(err))
			res.Errors++
			continue
		}

		if !s.AllowAnySender && !parse.IsCognitoNotification(msg.From, msg.Subject) {
			s.log.Debug("sender gate rejected message",
				zap.String("message_id", id),
				zap.String("from", msg.From),
			)
			res.Skipped++
			continue
		}

		deal := parse.ParseEmail(*msg)
		if parse.Skippable(deal) {
			s.log.Debug("no usable fields parsed", zap.String("message_id", id))
			res.Skipped++
			continue
		}

		switch s.gate.Admit(ctx, deal) {
		case OutcomeProcessed:
			res.Processed++
		case OutcomeSkipped:
			res.Skipped++
		default:
			res.Errors++
		}
	}

	s.log.Info("email sync complete",
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", res.Errors),
	)
	return res, nil
}
