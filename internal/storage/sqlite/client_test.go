package sqlite

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-agent/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(":memory:")
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDocumentRoundTrip(t *testing.T) {
	c := newTestClient(t)

	now := time.Unix(1700000000, 0)
	require.NoError(t, c.InsertDocument(&models.Document{
		ID:          "doc-1",
		Source:      "https://example.com/guide",
		Title:       "Setup Guide",
		ContentType: "html",
		Summary:     "How to set things up.",
		RawContent:  "Full text of the guide.",
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	doc, err := c.GetDocument("doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Setup Guide", doc.Title)
	assert.Equal(t, "https://example.com/guide", doc.Source)
	assert.Equal(t, now.Unix(), doc.CreatedAt.Unix())
}

func TestGetDocumentMissingIsNoRows(t *testing.T) {
	c := newTestClient(t)

	_, err := c.GetDocument("absent")
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestInteractionHistoryOrderedByRecency(t *testing.T) {
	c := newTestClient(t)

	for i, id := range []string{"old", "new"} {
		require.NoError(t, c.InsertInteraction(&models.InteractionRecord{
			ID:             id,
			UserID:         "u1",
			QueryText:      "q",
			Response:       "r",
			Classification: "retrieval",
			CreatedAt:      time.Unix(int64(1700000000+i), 0),
		}))
	}

	records, err := c.GetInteractionHistory("u1", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "new", records[0].ID)
}
