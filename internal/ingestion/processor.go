package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/relay-agent/backend/internal/storage/models"
	"github.com/relay-agent/backend/internal/storage/sqlite"
	"github.com/relay-agent/backend/internal/vector"
	"github.com/relay-agent/backend/pkg/logger"
	"github.com/relay-agent/backend/pkg/utils"
)

// BatchEmbedder produces one embedding per chunk.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ResponseCache invalidation hook, satisfied by the Redis client. Cached
// answers go stale when new documents land.
type ResponseCache interface {
	InvalidateResponses(ctx context.Context) error
}

// Processor turns raw documents into searchable chunks: clean markup,
// split with overlap, embed, upsert into the vector store, and mirror the
// document and chunk rows into SQLite.
type Processor struct {
	db           *sqlite.Client
	store        vector.Store
	embedder     BatchEmbedder
	cache        ResponseCache
	chunkSize    int
	chunkOverlap int
}

func NewProcessor(db *sqlite.Client, store vector.Store, embedder BatchEmbedder, cache ResponseCache, chunkSize, chunkOverlap int) *Processor {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 100
	}
	return &Processor{
		db:           db,
		store:        store,
		embedder:     embedder,
		cache:        cache,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Document is one ingestion input. Content may be HTML or plain text;
// HTML is detected and stripped.
type Document struct {
	Source  string
	Title   string
	Content string
}

func (p *Processor) ProcessDocument(ctx context.Context, input Document) (string, int, error) {
	logger.Info("Processing document", zap.String("source", input.Source))

	text := input.Content
	title := input.Title
	if looksLikeHTML(text) {
		text = cleanHTML(text)
		if title == "" {
			title = extractTitle(input.Content)
		}
	}
	text = normalizeWhitespace(text)
	if text == "" {
		return "", 0, fmt.Errorf("no content extracted from document")
	}
	if title == "" {
		title = "Untitled"
	}

	docID := utils.HashString(input.Source + title)
	doc := &models.Document{
		ID:          docID,
		Source:      input.Source,
		Title:       title,
		ContentType: contentType(input.Content),
		Summary:     summarize(text),
		RawContent:  text,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := p.db.InsertDocument(doc); err != nil {
		return "", 0, fmt.Errorf("failed to insert document: %w", err)
	}

	chunks := p.chunkText(text)
	logger.Info("Document chunked", zap.String("doc_id", docID), zap.Int("chunks", len(chunks)))

	embeddings, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return "", 0, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	items := make([]vector.Item, 0, len(chunks))
	now := time.Now().Unix()
	for i, chunkText := range chunks {
		chunkID := fmt.Sprintf("%s_chunk_%d", docID, i)
		items = append(items, vector.Item{
			ID:        chunkID,
			Text:      chunkText,
			Embedding: embeddings[i],
			Metadata: vector.Metadata{
				Source:     input.Source,
				Provenance: vector.ProvenanceDocument,
				Timestamp:  now,
			},
		})

		dbChunk := &models.DocumentChunk{
			ID:          chunkID,
			DocID:       docID,
			ChunkIndex:  i,
			Text:        chunkText,
			EmbeddingID: chunkID,
			CreatedAt:   time.Now(),
		}
		if err := p.db.InsertChunk(dbChunk); err != nil {
			logger.Warn("Failed to insert chunk row", zap.String("chunk_id", chunkID), zap.Error(err))
		}
	}

	if len(items) > 0 {
		if err := p.store.Upsert(ctx, items); err != nil {
			return "", 0, fmt.Errorf("failed to upsert into vector store: %w", err)
		}
	}

	if p.cache != nil {
		if err := p.cache.InvalidateResponses(ctx); err != nil {
			logger.Warn("Failed to invalidate response cache", zap.Error(err))
		}
	}

	logger.Info("Document processed successfully",
		zap.String("doc_id", docID),
		zap.Int("chunks", len(items)),
	)

	return docID, len(items), nil
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func normalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func looksLikeHTML(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<body") ||
		strings.Contains(lower, "<div") || strings.Contains(lower, "<p>")
}

func contentType(content string) string {
	if looksLikeHTML(content) {
		return "html"
	}
	return "text"
}

func cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	return doc.Find("body").Text()
}

func extractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	title := doc.Find("title").First().Text()
	if title == "" {
		title = doc.Find("h1").First().Text()
	}

	return strings.TrimSpace(title)
}

// summarize takes the leading sentence-ish slice of the text as a cheap
// summary for listings. Full summarization is not worth an inference call
// on the ingestion path.
func summarize(text string) string {
	const maxLen = 300
	if len(text) <= maxLen {
		return text
	}
	cut := text[:maxLen]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}

func (p *Processor) chunkText(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var currentChunk strings.Builder
	currentSize := 0

	for _, word := range words {
		wordLen := len(word) + 1

		if currentSize+wordLen > p.chunkSize && currentChunk.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(currentChunk.String()))

			overlapWords := strings.Fields(currentChunk.String())
			overlapStart := max(0, len(overlapWords)-p.chunkOverlap/10)
			currentChunk.Reset()
			currentChunk.WriteString(strings.Join(overlapWords[overlapStart:], " ") + " ")
			currentSize = currentChunk.Len()
		}

		currentChunk.WriteString(word + " ")
		currentSize += wordLen
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}

	return chunks
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
