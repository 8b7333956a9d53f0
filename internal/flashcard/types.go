// Package flashcard reads flashcard records and their HTML content.
package flashcard

import (
	"time"

	"github.com/jarrod-lowe/flashcard-anchor-service/internal/dynamo"
)

// Attribute names for DynamoDB items.
const (
	AttrFlashcardID   = "flashcardId"
	AttrAccountID     = "accountId"
	AttrTitle         = "title"
	AttrContentHTML   = "contentHtml"
	AttrContentBlobID = "contentBlobId"
	AttrUpdatedAt     = "updatedAt"
)

// Item is a flashcard record. Content is held inline in ContentHTML or, for
// larger cards, in the blob named by ContentBlobID.
type Item struct {
	AccountID     string
	FlashcardID   string
	Title         string
	ContentHTML   string
	ContentBlobID string
	UpdatedAt     time.Time
}

// PK returns the partition key for this flashcard.
func (i *Item) PK() string {
	return dynamo.AccountPK(i.AccountID)
}

// SK returns the sort key for this flashcard.
func (i *Item) SK() string {
	return dynamo.FlashcardSK(i.FlashcardID)
}
