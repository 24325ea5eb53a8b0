package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/broker-crm/internal/model"
	"github.com/sells-group/broker-crm/internal/store"
)

// ReplaceSource deletes every deal attributed to source, so the two channels
// can be kept mutually exclusive in the store. The delete is withheld when
// the preceding run processed nothing, unless force is set; a delete failure
// is warned about but never fails the run whose counts res carries.
func ReplaceSource(ctx context.Context, st store.Store, source string, res *model.RunResult, force bool) {
	log := zap.L().With(zap.String("component", "ingest.replace"))

	if res.Processed == 0 && !force {
		log.Warn("withholding source replacement: run processed no records",
			zap.String("source", source),
		)
		return
	}

	n, err := st.DeleteBySource(ctx, source)
	if err != nil {
		log.Warn("source replacement delete failed",
			zap.String("source", source),
			zap.Error(err),
		)
		return
	}

	res.Replaced = n
	log.Info("source replaced", zap.String("source", source), zap.Int64("deleted", n))
}
