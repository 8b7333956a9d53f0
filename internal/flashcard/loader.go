package flashcard

import (
	"context"
	"fmt"
)

// BlobFetcher retrieves blob content.
type BlobFetcher interface {
	FetchBlob(ctx context.Context, accountID, blobID string) ([]byte, error)
}

// Loader resolves the HTML content of a flashcard.
type Loader struct {
	blobs BlobFetcher
}

// NewLoader creates a Loader. blobs may be nil when every card is inline.
func NewLoader(blobs BlobFetcher) *Loader {
	return &Loader{blobs: blobs}
}

// LoadContent returns the card's inline HTML, or the content of its blob
// when it has one.
func (l *Loader) LoadContent(ctx context.Context, item *Item) (string, error) {
	if item.ContentBlobID == "" || item.ContentHTML != "" {
		return item.ContentHTML, nil
	}
	if l.blobs == nil {
		return "", fmt.Errorf("flashcard %s: content is in blob %s but no blob client is configured", item.FlashcardID, item.ContentBlobID)
	}
	data, err := l.blobs.FetchBlob(ctx, item.AccountID, item.ContentBlobID)
	if err != nil {
		return "", fmt.Errorf("fetch content blob %s: %w", item.ContentBlobID, err)
	}
	return string(data), nil
}
