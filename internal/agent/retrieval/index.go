package retrieval

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/digital-twin-core/server/internal/agent/model"
)

// Index is one category's semantic search backend. Results come back
// ordered by descending relevance score.
type Index interface {
	Query(ctx context.Context, question string, k int) ([]model.Passage, error)
}

// IndexSet maps each retrievable category to its index handle. Built once
// at process start and read-only afterwards; safe for concurrent use.
type IndexSet map[model.Category]Index

// NewRedisIndexSet builds one Redis-backed index per retrievable category.
func NewRedisIndexSet(rdb redis.Cmdable, embedder Embedder, keyPrefix string) IndexSet {
	set := make(IndexSet, len(model.CategoryPriority))
	for _, cat := range model.CategoryPriority {
		set[cat] = NewRedisIndex(rdb, embedder, keyPrefix, cat)
	}
	return set
}
