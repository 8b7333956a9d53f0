// Package main implements the anchor-check SQS consumer Lambda handler.
// It re-resolves every reference point of a flashcard and records the
// outcome without touching the content.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/anchorcheck"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/blob"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/flashcard"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/htmltree"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/refpoint"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/resolver"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/textindex"
	"github.com/jarrod-lowe/jmap-service-libs/awsinit"
	"github.com/jarrod-lowe/jmap-service-libs/dbclient"
	"github.com/jarrod-lowe/jmap-service-libs/logging"
	"github.com/jarrod-lowe/jmap-service-libs/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

var logger = logging.New()

// FlashcardRepository defines the interface for retrieving flashcards.
type FlashcardRepository interface {
	GetFlashcard(ctx context.Context, accountID, flashcardID string) (*flashcard.Item, error)
}

// ContentLoader resolves the HTML of a flashcard.
type ContentLoader interface {
	LoadContent(ctx context.Context, item *flashcard.Item) (string, error)
}

// ReferencePointRepository defines the reference point operations used by the check.
type ReferencePointRepository interface {
	ListByFlashcard(ctx context.Context, accountID, flashcardID string) ([]*refpoint.ReferencePoint, error)
	UpdateResolution(ctx context.Context, accountID, flashcardID, id string, res refpoint.Resolution) error
}

// handler implements the anchor-check SQS consumer logic.
type handler struct {
	cards  FlashcardRepository
	loader ContentLoader
	points ReferencePointRepository
	now    func() time.Time
}

// newHandler creates a new handler.
func newHandler(cards FlashcardRepository, loader ContentLoader, points ReferencePointRepository) *handler {
	return &handler{cards: cards, loader: loader, points: points, now: time.Now}
}

// handle processes an SQS event containing anchor check messages.
func (h *handler) handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	tracer := tracing.Tracer("flashcard-anchor-check")
	ctx, span := tracer.Start(ctx, "AnchorCheckHandler")
	defer span.End()

	var failures []events.SQSBatchItemFailure

	for _, record := range event.Records {
		msg, err := anchorcheck.Parse(record.Body)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to parse SQS message",
				slog.String("message_id", record.MessageId),
				slog.String("error", err.Error()),
			)
			failures = append(failures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
			continue
		}

		if err := h.check(ctx, msg); err != nil {
			tracing.RecordError(span, err)
			logger.ErrorContext(ctx, "Failed to check anchors",
				slog.String("check_id", msg.CheckID),
				slog.String("account_id", msg.AccountID),
				slog.String("flashcard_id", msg.FlashcardID),
				slog.String("error", err.Error()),
			)
			failures = append(failures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}

	span.SetAttributes(
		attribute.Int("total", len(event.Records)),
		attribute.Int("failures", len(failures)),
	)
	logger.InfoContext(ctx, "Anchor check batch completed",
		slog.Int("total", len(event.Records)),
		slog.Int("failures", len(failures)),
	)

	return events.SQSEventResponse{
		BatchItemFailures: failures,
	}, nil
}

// check resolves every reference point of one flashcard and stores the
// outcome of each.
func (h *handler) check(ctx context.Context, msg anchorcheck.Message) error {
	item, err := h.cards.GetFlashcard(ctx, msg.AccountID, msg.FlashcardID)
	if err != nil {
		if errors.Is(err, flashcard.ErrFlashcardNotFound) {
			logger.InfoContext(ctx, "Flashcard no longer exists, skipping check",
				slog.String("account_id", msg.AccountID),
				slog.String("flashcard_id", msg.FlashcardID),
			)
			return nil
		}
		return err
	}

	points, err := h.points.ListByFlashcard(ctx, msg.AccountID, msg.FlashcardID)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	html, err := h.loader.LoadContent(ctx, item)
	if err != nil {
		return err
	}
	doc, err := htmltree.ParseString(html)
	if err != nil {
		return err
	}

	values := make([]refpoint.ReferencePoint, 0, len(points))
	for _, p := range points {
		values = append(values, *p)
	}

	checkedAt := h.now().UTC()
	unresolved := 0
	for _, r := range resolver.Resolve(textindex.Build(doc), values) {
		res := refpoint.Resolution{
			Status:    string(r.Outcome.Status),
			Strategy:  string(r.Outcome.Strategy),
			CheckedAt: checkedAt,
		}
		if r.Outcome.Status != resolver.StatusResolved {
			unresolved++
		}
		err := h.points.UpdateResolution(ctx, msg.AccountID, msg.FlashcardID, r.Outcome.ReferenceID, res)
		if errors.Is(err, refpoint.ErrReferencePointNotFound) {
			continue
		}
		if err != nil {
			return err
		}
	}

	logger.InfoContext(ctx, "Checked reference points",
		slog.String("check_id", msg.CheckID),
		slog.String("reason", string(msg.Reason)),
		slog.String("account_id", msg.AccountID),
		slog.String("flashcard_id", msg.FlashcardID),
		slog.Int("count", len(values)),
		slog.Int("unresolved", unresolved),
	)
	return nil
}

func main() {
	ctx := context.Background()

	result, err := awsinit.Init(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to initialize", slog.String("error", err.Error()))
		panic(err)
	}

	tableName := os.Getenv("FLASHCARD_TABLE_NAME")
	coreAPIURL := os.Getenv("CORE_API_URL")

	dynamoClient := dbclient.NewClient(result.Config)

	// Warm DynamoDB connection
	warmCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	_, _ = dynamoClient.GetItem(warmCtx, &dynamodb.GetItemInput{
		TableName: aws.String(tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: "WARMUP"},
			"sk": &types.AttributeValueMemberS{Value: "WARMUP"},
		},
	})
	cancel()

	var blobs flashcard.BlobFetcher
	if coreAPIURL != "" {
		baseTransport := otelhttp.NewTransport(http.DefaultTransport)
		transport := blob.NewSigV4Transport(baseTransport, result.Config.Credentials, result.Config.Region)
		blobs = blob.NewHTTPClient(coreAPIURL, &http.Client{Transport: transport})
	}

	h := newHandler(
		flashcard.NewRepository(dynamoClient, tableName),
		flashcard.NewLoader(blobs),
		refpoint.NewDynamoDBRepository(dynamoClient, tableName),
	)
	result.Start(h.handle)
}
