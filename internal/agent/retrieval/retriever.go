package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/digital-twin-core/server/internal/agent/model"
	errx "github.com/digital-twin-core/server/internal/core/error"
	logx "github.com/digital-twin-core/server/pkg/logger"
)

// Retriever resolves a routing decision to an ordered passage batch.
// Unanswerable questions never touch an index. Soft failures (zero hits,
// embedding trouble) come back as an empty batch; an index outage is
// returned as a fatal error so no partial answer escapes.
type Retriever struct {
	indexes IndexSet
	cfg     model.RetrievalConfig
}

func NewRetriever(indexes IndexSet, cfg model.RetrievalConfig) *Retriever {
	return &Retriever{indexes: indexes, cfg: cfg}
}

func (r *Retriever) Retrieve(ctx context.Context, decision model.RoutingDecision, question string) ([]model.Passage, error) {
	if !decision.Category.Retrievable() {
		return []model.Passage{}, nil
	}

	idx, ok := r.indexes[decision.Category]
	if !ok {
		return nil, errx.WrapIndex(fmt.Errorf("no index registered for category %s", decision.Category))
	}

	passages, err := idx.Query(ctx, question, r.cfg.K(decision.Category))
	if err != nil {
		if errors.Is(err, errx.ErrIndexUnavailable) {
			return nil, err
		}
		logx.Warn().
			Err(err).
			Str("category", decision.Category.String()).
			Msg("Index query degraded; continuing with empty passage batch")
		return []model.Passage{}, nil
	}

	logx.Debug().
		Str("category", decision.Category.String()).
		Int("passages", len(passages)).
		Msg("Retrieved passages")
	return passages, nil
}
