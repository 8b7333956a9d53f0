package anchorcheck

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
)

// Publisher queues anchor checks.
type Publisher interface {
	PublishCheck(ctx context.Context, accountID, flashcardID string, reason Reason) (string, error)
}

// SQSSender abstracts SQS send operations for dependency inversion.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher publishes anchor checks to an SQS queue.
type SQSPublisher struct {
	client   SQSSender
	queueURL string
	newID    func() string
}

// NewSQSPublisher creates a new SQSPublisher.
func NewSQSPublisher(client SQSSender, queueURL string) *SQSPublisher {
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
		newID:    uuid.NewString,
	}
}

// PublishCheck sends a check message and returns its check ID.
func (p *SQSPublisher) PublishCheck(ctx context.Context, accountID, flashcardID string, reason Reason) (string, error) {
	msg := Message{
		CheckID:     p.newID(),
		AccountID:   accountID,
		FlashcardID: flashcardID,
		Reason:      reason,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	bodyStr := string(body)
	if _, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &p.queueURL,
		MessageBody: &bodyStr,
	}); err != nil {
		return "", err
	}
	return msg.CheckID, nil
}
