package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-agent/backend/internal/vector"
)

func item(id string, embedding []float32) vector.Item {
	return vector.Item{ID: id, Text: "text " + id, Embedding: embedding}
}

func TestSearchOrdersByDescendingScore(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []vector.Item{
		item("far", []float32{0, 1, 0}),
		item("near", []float32{1, 0, 0}),
		item("mid", []float32{1, 1, 0}),
	}))

	hits, err := s.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "near", hits[0].ID)
	assert.Equal(t, "mid", hits[1].ID)
	assert.Equal(t, "far", hits[2].ID)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestSearchTruncatesToTopK(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []vector.Item{
		item("a", []float32{1, 0}),
		item("b", []float32{1, 0.1}),
		item("c", []float32{1, 0.2}),
	}))

	hits, err := s.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchTieKeepsInsertionOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []vector.Item{
		item("first", []float32{1, 0}),
		item("second", []float32{1, 0}),
	}))

	hits, err := s.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "first", hits[0].ID)
	assert.Equal(t, "second", hits[1].ID)
}

func TestUpsertReplacesByID(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []vector.Item{item("a", []float32{1, 0})}))
	require.NoError(t, s.Upsert(ctx, []vector.Item{{
		ID:        "a",
		Text:      "replaced",
		Embedding: []float32{0, 1},
	}}))

	assert.Equal(t, 1, s.Len())

	hits, err := s.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "replaced", hits[0].Text)
}

func TestSearchEmptyStore(t *testing.T) {
	s := NewStore()

	hits, err := s.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
