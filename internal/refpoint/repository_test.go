package refpoint

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamoDBClient is a test double for DynamoDB operations.
type mockDynamoDBClient struct {
	getItemFunc    func(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	queryFunc      func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	updateItemFunc func(ctx context.Context, input *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

func (m *mockDynamoDBClient) GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getItemFunc != nil {
		return m.getItemFunc(ctx, input, opts...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockDynamoDBClient) Query(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, input, opts...)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockDynamoDBClient) UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if m.updateItemFunc != nil {
		return m.updateItemFunc(ctx, input, opts...)
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func refPointItem(id, text string, created time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk":           &types.AttributeValueMemberS{Value: "ACCOUNT#user-123"},
		"sk":           &types.AttributeValueMemberS{Value: "FLASHCARD#card-1#REFPOINT#" + id},
		"id":           &types.AttributeValueMemberS{Value: id},
		"accountId":    &types.AttributeValueMemberS{Value: "user-123"},
		"flashcardId":  &types.AttributeValueMemberS{Value: "card-1"},
		"selectedText": &types.AttributeValueMemberS{Value: text},
		"category":     &types.AttributeValueMemberS{Value: "phrase"},
		"createdAt":    &types.AttributeValueMemberS{Value: created.Format(time.RFC3339)},
	}
}

func TestDynamoDBRepository_Get(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock := &mockDynamoDBClient{
		getItemFunc: func(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			if pk, ok := input.Key["pk"].(*types.AttributeValueMemberS); !ok || pk.Value != "ACCOUNT#user-123" {
				t.Errorf("unexpected pk: %v", input.Key["pk"])
			}
			if sk, ok := input.Key["sk"].(*types.AttributeValueMemberS); !ok || sk.Value != "FLASHCARD#card-1#REFPOINT#rp-1" {
				t.Errorf("unexpected sk: %v", input.Key["sk"])
			}
			item := refPointItem("rp-1", "la casa", now)
			item["contextBefore"] = &types.AttributeValueMemberS{Value: "en "}
			item["notes"] = &types.AttributeValueMemberS{Value: "feminine"}
			item["resolutionStatus"] = &types.AttributeValueMemberS{Value: "resolved"}
			item["resolutionStrategy"] = &types.AttributeValueMemberS{Value: "exact"}
			item["resolutionCheckedAt"] = &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)}
			return &dynamodb.GetItemOutput{Item: item}, nil
		},
	}

	repo := NewDynamoDBRepository(mock, "test-table")
	p, err := repo.Get(ctx, "user-123", "card-1", "rp-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.SelectedText != "la casa" {
		t.Errorf("SelectedText = %q, want %q", p.SelectedText, "la casa")
	}
	if p.ContextBefore != "en " {
		t.Errorf("ContextBefore = %q, want %q", p.ContextBefore, "en ")
	}
	if p.Category != CategoryPhrase {
		t.Errorf("Category = %q, want %q", p.Category, CategoryPhrase)
	}
	if !p.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", p.CreatedAt, now)
	}
	if p.Resolution == nil || p.Resolution.Status != "resolved" || p.Resolution.Strategy != "exact" {
		t.Errorf("unexpected resolution: %+v", p.Resolution)
	}
}

func TestDynamoDBRepository_Get_NotFound(t *testing.T) {
	repo := NewDynamoDBRepository(&mockDynamoDBClient{}, "test-table")
	_, err := repo.Get(context.Background(), "user-123", "card-1", "missing")
	if !errors.Is(err, ErrReferencePointNotFound) {
		t.Errorf("Get() error = %v, want %v", err, ErrReferencePointNotFound)
	}
}

func TestDynamoDBRepository_ListByFlashcard_Paginates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	calls := 0

	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			calls++
			prefix := input.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS).Value
			if prefix != "FLASHCARD#card-1#REFPOINT#" {
				t.Errorf("prefix = %q", prefix)
			}
			switch calls {
			case 1:
				if input.ExclusiveStartKey != nil {
					t.Error("first page should not have a start key")
				}
				return &dynamodb.QueryOutput{
					Items: []map[string]types.AttributeValue{refPointItem("rp-1", "one", now)},
					LastEvaluatedKey: map[string]types.AttributeValue{
						"pk": &types.AttributeValueMemberS{Value: "ACCOUNT#user-123"},
						"sk": &types.AttributeValueMemberS{Value: "FLASHCARD#card-1#REFPOINT#rp-1"},
					},
				}, nil
			case 2:
				if input.ExclusiveStartKey == nil {
					t.Error("second page should continue from the last key")
				}
				return &dynamodb.QueryOutput{
					Items: []map[string]types.AttributeValue{refPointItem("rp-2", "two", now)},
				}, nil
			}
			t.Fatalf("unexpected query %d", calls)
			return nil, nil
		},
	}

	repo := NewDynamoDBRepository(mock, "test-table")
	points, err := repo.ListByFlashcard(ctx, "user-123", "card-1")
	if err != nil {
		t.Fatalf("ListByFlashcard() error = %v", err)
	}
	if len(points) != 2 || points[0].ID != "rp-1" || points[1].ID != "rp-2" {
		t.Errorf("unexpected points: %+v", points)
	}
	if points[0].Resolution != nil {
		t.Error("expected no resolution when none is stored")
	}
}

func TestDynamoDBRepository_ListByFlashcard_Error(t *testing.T) {
	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	repo := NewDynamoDBRepository(mock, "test-table")
	if _, err := repo.ListByFlashcard(context.Background(), "user-123", "card-1"); err == nil {
		t.Error("expected error")
	}
}

func TestDynamoDBRepository_UpdateAnchor(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	mock := &mockDynamoDBClient{
		updateItemFunc: func(ctx context.Context, input *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			if input.ConditionExpression == nil || *input.ConditionExpression != "attribute_exists(pk)" {
				t.Errorf("unexpected condition: %v", input.ConditionExpression)
			}
			if !strings.Contains(*input.UpdateExpression, "REMOVE resolutionStatus") {
				t.Errorf("expected resolution to be cleared: %s", *input.UpdateExpression)
			}
			if v := input.ExpressionAttributeValues[":text"].(*types.AttributeValueMemberS).Value; v != "new text" {
				t.Errorf(":text = %q, want %q", v, "new text")
			}
			if v := input.ExpressionAttributeValues[":updatedAt"].(*types.AttributeValueMemberS).Value; v != now.Format(time.RFC3339) {
				t.Errorf(":updatedAt = %q", v)
			}
			return &dynamodb.UpdateItemOutput{}, nil
		},
	}

	repo := NewDynamoDBRepository(mock, "test-table")
	err := repo.UpdateAnchor(ctx, "user-123", "card-1", "rp-1", AnchorUpdate{
		SelectedText:  "new text",
		ContextBefore: "before ",
		ContextAfter:  " after",
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("UpdateAnchor() error = %v", err)
	}
}

func TestDynamoDBRepository_UpdateNotFound(t *testing.T) {
	mock := &mockDynamoDBClient{
		updateItemFunc: func(ctx context.Context, input *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
		},
	}
	repo := NewDynamoDBRepository(mock, "test-table")
	ctx := context.Background()

	if err := repo.UpdateAnchor(ctx, "user-123", "card-1", "rp-1", AnchorUpdate{SelectedText: "x"}); !errors.Is(err, ErrReferencePointNotFound) {
		t.Errorf("UpdateAnchor() error = %v, want %v", err, ErrReferencePointNotFound)
	}
	if err := repo.UpdateResolution(ctx, "user-123", "card-1", "rp-1", Resolution{Status: "resolved"}); !errors.Is(err, ErrReferencePointNotFound) {
		t.Errorf("UpdateResolution() error = %v, want %v", err, ErrReferencePointNotFound)
	}
}

func TestDynamoDBRepository_UpdateResolution(t *testing.T) {
	var got *dynamodb.UpdateItemInput
	mock := &mockDynamoDBClient{
		updateItemFunc: func(ctx context.Context, input *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			got = input
			return &dynamodb.UpdateItemOutput{}, nil
		},
	}
	repo := NewDynamoDBRepository(mock, "test-table")

	err := repo.UpdateResolution(context.Background(), "user-123", "card-1", "rp-1", Resolution{Status: "notFound"})
	if err != nil {
		t.Fatalf("UpdateResolution() error = %v", err)
	}
	if v := got.ExpressionAttributeValues[":status"].(*types.AttributeValueMemberS).Value; v != "notFound" {
		t.Errorf(":status = %q, want %q", v, "notFound")
	}
	if v := got.ExpressionAttributeValues[":checkedAt"].(*types.AttributeValueMemberS).Value; v == "" {
		t.Error("expected checkedAt to default to now")
	}
}

func strPtr(s string) *string {
	return &s
}
