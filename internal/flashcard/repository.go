package flashcard

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/dynamo"
)

// ErrFlashcardNotFound is returned when a flashcard does not exist.
var ErrFlashcardNotFound = errors.New("flashcard not found")

// DynamoDBClient defines the interface for DynamoDB operations.
type DynamoDBClient interface {
	GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Repository handles flashcard storage operations.
type Repository struct {
	client    DynamoDBClient
	tableName string
}

// NewRepository creates a new Repository.
func NewRepository(client DynamoDBClient, tableName string) *Repository {
	return &Repository{
		client:    client,
		tableName: tableName,
	}
}

// GetFlashcard retrieves a flashcard by ID.
func (r *Repository) GetFlashcard(ctx context.Context, accountID, flashcardID string) (*Item, error) {
	key := &Item{AccountID: accountID, FlashcardID: flashcardID}
	output, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       dynamo.Key(key.PK(), key.SK()),
	})
	if err != nil {
		return nil, err
	}
	if output.Item == nil {
		return nil, ErrFlashcardNotFound
	}

	return &Item{
		AccountID:     accountID,
		FlashcardID:   flashcardID,
		Title:         dynamo.StringAttr(output.Item, AttrTitle),
		ContentHTML:   dynamo.StringAttr(output.Item, AttrContentHTML),
		ContentBlobID: dynamo.StringAttr(output.Item, AttrContentBlobID),
		UpdatedAt:     dynamo.TimeAttr(output.Item, AttrUpdatedAt),
	}, nil
}
