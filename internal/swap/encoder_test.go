package swap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmbeddingUnitLength(t *testing.T) {
	raw := make([]float32, EmbeddingSize)
	for i := range raw {
		raw[i] = float32(i%17) - 8.0
	}

	emb := normalizeEmbedding(raw)
	assert.InDelta(t, 1.0, emb.Norm(), 1e-4)
}

func TestNormalizeEmbeddingZeroVector(t *testing.T) {
	raw := make([]float32, EmbeddingSize)

	emb := normalizeEmbedding(raw)
	for _, v := range emb {
		assert.False(t, math.IsNaN(float64(v)))
	}
	assert.InDelta(t, 0.0, emb.Norm(), 1e-6)
}

func TestCosineSimilarity(t *testing.T) {
	raw := make([]float32, EmbeddingSize)
	for i := range raw {
		raw[i] = float32(i + 1)
	}
	emb := normalizeEmbedding(raw)

	assert.InDelta(t, 1.0, float64(CosineSimilarity(emb, emb)), 1e-4)

	var negated Embedding
	for i, v := range emb {
		negated[i] = -v
	}
	assert.InDelta(t, -1.0, float64(CosineSimilarity(emb, &negated)), 1e-4)
}
