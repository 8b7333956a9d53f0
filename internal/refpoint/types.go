// Package refpoint provides the reference point model and its DynamoDB storage.
package refpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/jarrod-lowe/flashcard-anchor-service/internal/canon"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/dynamo"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/highlight"
)

// Validation errors.
var (
	ErrEmptySelectedText = errors.New("selected text is empty")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrInvalidColor      = errors.New("invalid color")
)

// Category classifies why a reference point was created.
type Category string

// Known categories.
const (
	CategoryNotMastered   Category = "not-mastered"
	CategoryToInvestigate Category = "to-investigate"
	CategoryExample       Category = "example"
	CategoryPhrase        Category = "phrase"
)

var categoryColors = map[Category]string{
	CategoryNotMastered:   "#ef4444",
	CategoryToInvestigate: "#f59e0b",
	CategoryExample:       "#3b82f6",
	CategoryPhrase:        "#10b981",
}

// ParseCategory returns the Category named by s.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := categoryColors[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// Color returns the display colour of the category, or "" when unknown.
func (c Category) Color() string {
	return categoryColors[c]
}

// Resolution is the outcome of the last background anchor check.
type Resolution struct {
	Status    string
	Strategy  string
	CheckedAt time.Time
}

// ReferencePoint is a saved excerpt of flashcard content.
type ReferencePoint struct {
	ID            string
	AccountID     string
	FlashcardID   string
	SelectedText  string
	ContextBefore string
	ContextAfter  string
	ReferenceName string
	Category      Category
	Color         string
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Resolution    *Resolution
}

// PK returns the DynamoDB partition key for this reference point.
func (p *ReferencePoint) PK() string {
	return dynamo.AccountPK(p.AccountID)
}

// SK returns the DynamoDB sort key for this reference point.
func (p *ReferencePoint) SK() string {
	return ListPrefix(p.FlashcardID) + p.ID
}

// Validate checks the fields the anchor resolver depends on. An empty
// category or colour is allowed.
func (p *ReferencePoint) Validate() error {
	if canon.Trimmed(p.SelectedText) == "" {
		return ErrEmptySelectedText
	}
	if p.Category != "" {
		if _, err := ParseCategory(string(p.Category)); err != nil {
			return err
		}
	}
	if p.Color != "" && !highlight.ValidColor(p.Color) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, p.Color)
	}
	return nil
}

// EffectiveColor returns the colour to draw the reference point with: its
// own colour when valid, else its category's.
func (p *ReferencePoint) EffectiveColor() string {
	if highlight.ValidColor(p.Color) {
		return p.Color
	}
	return p.Category.Color()
}

// Reference returns the projection of p used by the highlighter.
func (p *ReferencePoint) Reference() highlight.Reference {
	return highlight.Reference{
		ID:    p.ID,
		Color: p.EffectiveColor(),
		Notes: p.Notes,
	}
}

// AnchorUpdate replaces the stored excerpt and its context.
type AnchorUpdate struct {
	SelectedText  string
	ContextBefore string
	ContextAfter  string
	UpdatedAt     time.Time
}
