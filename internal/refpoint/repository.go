package refpoint

import (
	"context"
	"errors"
)

// ErrReferencePointNotFound is returned when a reference point does not exist.
var ErrReferencePointNotFound = errors.New("reference point not found")

// Repository defines the storage operations on reference points. Creation
// and deletion belong to the content API.
type Repository interface {
	ListByFlashcard(ctx context.Context, accountID, flashcardID string) ([]*ReferencePoint, error)
	Get(ctx context.Context, accountID, flashcardID, id string) (*ReferencePoint, error)
	UpdateAnchor(ctx context.Context, accountID, flashcardID, id string, update AnchorUpdate) error
	UpdateResolution(ctx context.Context, accountID, flashcardID, id string, res Resolution) error
}
