package refpoint

import "github.com/jarrod-lowe/flashcard-anchor-service/internal/dynamo"

// PrefixRefPoint separates the flashcard from the reference point in a sort key.
const PrefixRefPoint = "REFPOINT#"

// Attribute names for DynamoDB items.
const (
	AttrID                  = "id"
	AttrAccountID           = "accountId"
	AttrFlashcardID         = "flashcardId"
	AttrSelectedText        = "selectedText"
	AttrContextBefore       = "contextBefore"
	AttrContextAfter        = "contextAfter"
	AttrReferenceName       = "referenceName"
	AttrCategory            = "category"
	AttrColor               = "color"
	AttrNotes               = "notes"
	AttrCreatedAt           = "createdAt"
	AttrUpdatedAt           = "updatedAt"
	AttrResolutionStatus    = "resolutionStatus"
	AttrResolutionStrategy  = "resolutionStrategy"
	AttrResolutionCheckedAt = "resolutionCheckedAt"
)

// ListPrefix returns the sort key prefix shared by every reference point of
// a flashcard.
func ListPrefix(flashcardID string) string {
	return dynamo.FlashcardSK(flashcardID) + "#" + PrefixRefPoint
}
