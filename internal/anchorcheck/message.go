// Package anchorcheck queues background checks of a flashcard's reference
// points via SQS.
package anchorcheck

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Reason records why a check was requested.
type Reason string

const (
	// ReasonContentUpdated indicates the flashcard content changed.
	ReasonContentUpdated Reason = "content-updated"
	// ReasonAnchorRepaired indicates a reference point was re-anchored.
	ReasonAnchorRepaired Reason = "anchor-repaired"
)

// ErrInvalidMessage is returned when a queued body cannot be used.
var ErrInvalidMessage = errors.New("invalid anchor check message")

// Message is the SQS message body for anchor check requests.
type Message struct {
	CheckID     string `json:"checkId"`
	AccountID   string `json:"accountId"`
	FlashcardID string `json:"flashcardId"`
	Reason      Reason `json:"reason"`
}

// Parse decodes and validates a message body.
func Parse(body string) (Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.AccountID == "" || msg.FlashcardID == "" {
		return Message{}, fmt.Errorf("%w: accountId and flashcardId are required", ErrInvalidMessage)
	}
	switch msg.Reason {
	case ReasonContentUpdated, ReasonAnchorRepaired:
	default:
		return Message{}, fmt.Errorf("%w: unknown reason %q", ErrInvalidMessage, msg.Reason)
	}
	return msg, nil
}
