package refpoint

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/dynamo"
)

// DynamoDBClient defines the interface for DynamoDB operations.
type DynamoDBClient interface {
	GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoDBRepository implements Repository using DynamoDB.
type DynamoDBRepository struct {
	client    DynamoDBClient
	tableName string
}

// NewDynamoDBRepository creates a new DynamoDBRepository.
func NewDynamoDBRepository(client DynamoDBClient, tableName string) *DynamoDBRepository {
	return &DynamoDBRepository{
		client:    client,
		tableName: tableName,
	}
}

// ListByFlashcard returns every reference point of a flashcard in sort key
// order, following pagination until the query is exhausted.
func (r *DynamoDBRepository) ListByFlashcard(ctx context.Context, accountID, flashcardID string) ([]*ReferencePoint, error) {
	var points []*ReferencePoint
	var startKey map[string]types.AttributeValue
	for {
		output, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: dynamo.AccountPK(accountID)},
				":prefix": &types.AttributeValueMemberS{Value: ListPrefix(flashcardID)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		for _, item := range output.Items {
			points = append(points, unmarshalReferencePoint(item))
		}
		if len(output.LastEvaluatedKey) == 0 {
			return points, nil
		}
		startKey = output.LastEvaluatedKey
	}
}

// Get retrieves a single reference point.
func (r *DynamoDBRepository) Get(ctx context.Context, accountID, flashcardID, id string) (*ReferencePoint, error) {
	point := &ReferencePoint{AccountID: accountID, FlashcardID: flashcardID, ID: id}

	output, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       key(point),
	})
	if err != nil {
		return nil, err
	}
	if output.Item == nil {
		return nil, ErrReferencePointNotFound
	}
	return unmarshalReferencePoint(output.Item), nil
}

// UpdateAnchor overwrites the excerpt and context of an existing reference
// point. The previous background check result no longer applies and is
// removed.
func (r *DynamoDBRepository) UpdateAnchor(ctx context.Context, accountID, flashcardID, id string, update AnchorUpdate) error {
	point := &ReferencePoint{AccountID: accountID, FlashcardID: flashcardID, ID: id}
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = time.Now()
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key:       key(point),
		UpdateExpression: aws.String("SET selectedText = :text, contextBefore = :before, contextAfter = :after, updatedAt = :updatedAt " +
			"REMOVE resolutionStatus, resolutionStrategy, resolutionCheckedAt"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":text":      &types.AttributeValueMemberS{Value: update.SelectedText},
			":before":    &types.AttributeValueMemberS{Value: update.ContextBefore},
			":after":     &types.AttributeValueMemberS{Value: update.ContextAfter},
			":updatedAt": dynamo.TimeValue(update.UpdatedAt),
		},
		ConditionExpression: aws.String("attribute_exists(pk)"),
	})
	return notFoundOnConditionFailure(err)
}

// UpdateResolution stores the result of a background anchor check.
func (r *DynamoDBRepository) UpdateResolution(ctx context.Context, accountID, flashcardID, id string, res Resolution) error {
	point := &ReferencePoint{AccountID: accountID, FlashcardID: flashcardID, ID: id}
	if res.CheckedAt.IsZero() {
		res.CheckedAt = time.Now()
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              key(point),
		UpdateExpression: aws.String("SET resolutionStatus = :status, resolutionStrategy = :strategy, resolutionCheckedAt = :checkedAt"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":    &types.AttributeValueMemberS{Value: res.Status},
			":strategy":  &types.AttributeValueMemberS{Value: res.Strategy},
			":checkedAt": dynamo.TimeValue(res.CheckedAt),
		},
		ConditionExpression: aws.String("attribute_exists(pk)"),
	})
	return notFoundOnConditionFailure(err)
}

func key(p *ReferencePoint) map[string]types.AttributeValue {
	return dynamo.Key(p.PK(), p.SK())
}

func notFoundOnConditionFailure(err error) error {
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrReferencePointNotFound
	}
	return err
}

// unmarshalReferencePoint converts DynamoDB attribute values to a ReferencePoint.
func unmarshalReferencePoint(item map[string]types.AttributeValue) *ReferencePoint {
	p := &ReferencePoint{
		ID:            dynamo.StringAttr(item, AttrID),
		AccountID:     dynamo.StringAttr(item, AttrAccountID),
		FlashcardID:   dynamo.StringAttr(item, AttrFlashcardID),
		SelectedText:  dynamo.StringAttr(item, AttrSelectedText),
		ContextBefore: dynamo.StringAttr(item, AttrContextBefore),
		ContextAfter:  dynamo.StringAttr(item, AttrContextAfter),
		ReferenceName: dynamo.StringAttr(item, AttrReferenceName),
		Category:      Category(dynamo.StringAttr(item, AttrCategory)),
		Color:         dynamo.StringAttr(item, AttrColor),
		Notes:         dynamo.StringAttr(item, AttrNotes),
		CreatedAt:     dynamo.TimeAttr(item, AttrCreatedAt),
		UpdatedAt:     dynamo.TimeAttr(item, AttrUpdatedAt),
	}

	if status := dynamo.StringAttr(item, AttrResolutionStatus); status != "" {
		p.Resolution = &Resolution{
			Status:    status,
			Strategy:  dynamo.StringAttr(item, AttrResolutionStrategy),
			CheckedAt: dynamo.TimeAttr(item, AttrResolutionCheckedAt),
		}
	}
	return p
}
