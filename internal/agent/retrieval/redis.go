package retrieval

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/digital-twin-core/server/internal/agent/model"
	errx "github.com/digital-twin-core/server/internal/core/error"
	logx "github.com/digital-twin-core/server/pkg/logger"
)

const (
	fieldContent   = "content"
	fieldMetadata  = "metadata"
	fieldEmbedding = "embedding"
)

// RedisIndex stores one category's passages as hashes with float32 embedding
// blobs plus a per-category ID set, and ranks candidates client-side by
// cosine similarity. The corpus is one person's profile, so a full scan of
// the category stays small.
type RedisIndex struct {
	rdb       redis.Cmdable
	embedder  Embedder
	keyPrefix string
	category  model.Category
}

func NewRedisIndex(rdb redis.Cmdable, embedder Embedder, keyPrefix string, category model.Category) *RedisIndex {
	return &RedisIndex{rdb: rdb, embedder: embedder, keyPrefix: keyPrefix, category: category}
}

func (i *RedisIndex) idSetKey() string {
	return fmt.Sprintf("%s:%s:ids", i.keyPrefix, i.category)
}

func (i *RedisIndex) passageKey(id string) string {
	return fmt.Sprintf("%s:%s:passage:%s", i.keyPrefix, i.category, id)
}

// Add upserts a passage and its embedding. Used by the indexer, never by
// the request path.
func (i *RedisIndex) Add(ctx context.Context, id, content, metadata string, embedding []float32) error {
	if err := i.rdb.HSet(ctx, i.passageKey(id), map[string]any{
		fieldContent:   content,
		fieldMetadata:  metadata,
		fieldEmbedding: encodeVector(embedding),
	}).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	if err := i.rdb.SAdd(ctx, i.idSetKey(), id).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

// Count returns the number of passages stored for the category.
func (i *RedisIndex) Count(ctx context.Context) (int64, error) {
	n, err := i.rdb.SCard(ctx, i.idSetKey()).Result()
	if err != nil {
		return 0, errx.WrapRedis(err)
	}
	return n, nil
}

// Query embeds the question and returns the top-k passages by cosine
// similarity, ordered by descending score. Zero stored passages yield an
// empty batch; Redis command failures surface as an index outage.
func (i *RedisIndex) Query(ctx context.Context, question string, k int) ([]model.Passage, error) {
	if k <= 0 {
		return nil, nil
	}

	queryVec, err := i.embedder.Embed(ctx, question)
	if err != nil {
		// Degraded, not fatal: the pipeline treats an empty batch as valid input.
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	ids, err := i.rdb.SMembers(ctx, i.idSetKey()).Result()
	if err != nil {
		return nil, errx.WrapIndex(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	passages := make([]model.Passage, 0, len(ids))
	for _, id := range ids {
		fields, err := i.rdb.HGetAll(ctx, i.passageKey(id)).Result()
		if err != nil {
			return nil, errx.WrapIndex(err)
		}
		vec := decodeVector(fields[fieldEmbedding])
		if len(vec) == 0 || len(vec) != len(queryVec) {
			logx.Warn().
				Str("category", i.category.String()).
				Str("passage_id", id).
				Msg("Skipping passage with missing or mismatched embedding")
			continue
		}
		passages = append(passages, model.Passage{
			ID:       id,
			Content:  fields[fieldContent],
			Source:   i.category,
			Score:    cosineSimilarity(queryVec, vec),
			Metadata: fields[fieldMetadata],
		})
	}

	sort.SliceStable(passages, func(a, b int) bool {
		return passages[a].Score > passages[b].Score
	})
	if len(passages) > k {
		passages = passages[:k]
	}
	return passages, nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(raw string) []float32 {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(raw[4*i : 4*i+4])))
	}
	return vec
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ Index = (*RedisIndex)(nil)
