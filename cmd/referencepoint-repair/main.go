// Package main implements the ReferencePoint/repair Lambda handler.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/anchor"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/anchorcheck"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/blob"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/canon"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/flashcard"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/htmltree"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/refpoint"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/textindex"
	"github.com/jarrod-lowe/jmap-service-libs/awsinit"
	"github.com/jarrod-lowe/jmap-service-libs/dbclient"
	"github.com/jarrod-lowe/jmap-service-libs/jmaperror"
	"github.com/jarrod-lowe/jmap-service-libs/logging"
	"github.com/jarrod-lowe/jmap-service-libs/plugincontract"
	"github.com/jarrod-lowe/jmap-service-libs/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
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

// ReferencePointRepository defines the reference point operations used by repair.
type ReferencePointRepository interface {
	Get(ctx context.Context, accountID, flashcardID, id string) (*refpoint.ReferencePoint, error)
	UpdateAnchor(ctx context.Context, accountID, flashcardID, id string, update refpoint.AnchorUpdate) error
}

// handler implements the ReferencePoint/repair logic.
type handler struct {
	cards     FlashcardRepository
	loader    ContentLoader
	points    ReferencePointRepository
	publisher anchorcheck.Publisher
	now       func() time.Time
}

// newHandler creates a new handler. publisher may be nil.
func newHandler(cards FlashcardRepository, loader ContentLoader, points ReferencePointRepository, publisher anchorcheck.Publisher) *handler {
	return &handler{
		cards:     cards,
		loader:    loader,
		points:    points,
		publisher: publisher,
		now:       time.Now,
	}
}

// handle processes a ReferencePoint/repair request.
func (h *handler) handle(ctx context.Context, request plugincontract.PluginInvocationRequest) (plugincontract.PluginInvocationResponse, error) {
	tracer := tracing.Tracer("flashcard-referencepoint-repair")
	ctx, span := tracer.Start(ctx, "ReferencePointRepairHandler")
	defer span.End()

	if request.Method != "ReferencePoint/repair" {
		return errorResponse(request.ClientID, jmaperror.UnknownMethod("This handler only supports ReferencePoint/repair")), nil
	}

	accountID := request.Args.StringOr("accountId", request.AccountID)
	flashcardID, ok := request.Args.String("flashcardId")
	if !ok || flashcardID == "" {
		return errorResponse(request.ClientID, jmaperror.InvalidArguments("flashcardId argument is required")), nil
	}
	id, ok := request.Args.String("id")
	if !ok || id == "" {
		return errorResponse(request.ClientID, jmaperror.InvalidArguments("id argument is required")), nil
	}
	candidate, ok := request.Args.Object("candidate")
	if !ok {
		return errorResponse(request.ClientID, jmaperror.InvalidArguments("candidate argument is required")), nil
	}
	update := refpoint.AnchorUpdate{
		SelectedText:  candidate.StringOr("text", ""),
		ContextBefore: candidate.StringOr("contextBefore", ""),
		ContextAfter:  candidate.StringOr("contextAfter", ""),
	}
	if canon.Trimmed(update.SelectedText) == "" {
		return errorResponse(request.ClientID, jmaperror.InvalidArguments("candidate text must not be empty")), nil
	}

	span.SetAttributes(
		tracing.AccountID(accountID),
		attribute.String("flashcard_id", flashcardID),
		attribute.String("reference_id", id),
	)

	var html string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		item, err := h.cards.GetFlashcard(gctx, accountID, flashcardID)
		if err != nil {
			return err
		}
		html, err = h.loader.LoadContent(gctx, item)
		return err
	})
	g.Go(func() error {
		_, err := h.points.Get(gctx, accountID, flashcardID, id)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, flashcard.ErrFlashcardNotFound) || errors.Is(err, refpoint.ErrReferencePointNotFound) {
			return errorResponse(request.ClientID, &jmaperror.MethodError{
				ErrType:     "notFound",
				Description: err.Error(),
			}), nil
		}
		return h.serverFail(ctx, request.ClientID, accountID, flashcardID, err), nil
	}

	doc, err := htmltree.ParseString(html)
	if err != nil {
		return h.serverFail(ctx, request.ClientID, accountID, flashcardID, err), nil
	}
	match, err := anchor.Locate(textindex.Build(doc), anchor.Needle{
		Text:          update.SelectedText,
		ContextBefore: update.ContextBefore,
		ContextAfter:  update.ContextAfter,
	})
	if err != nil {
		return errorResponse(request.ClientID, jmaperror.InvalidArguments("candidate text does not occur in the flashcard")), nil
	}
	// A prefix match only shows the leading words are still present.
	if match.Strategy == anchor.StrategyPrefix {
		return errorResponse(request.ClientID, jmaperror.InvalidArguments("candidate text does not fully occur in the flashcard")), nil
	}
	span.SetAttributes(attribute.String("strategy", string(match.Strategy)))

	update.UpdatedAt = h.now().UTC()
	if err := h.points.UpdateAnchor(ctx, accountID, flashcardID, id, update); err != nil {
		if errors.Is(err, refpoint.ErrReferencePointNotFound) {
			return errorResponse(request.ClientID, &jmaperror.MethodError{
				ErrType:     "notFound",
				Description: err.Error(),
			}), nil
		}
		return h.serverFail(ctx, request.ClientID, accountID, flashcardID, err), nil
	}

	// The check is advisory; the repair has already been stored.
	var checkID any
	if h.publisher != nil {
		cid, err := h.publisher.PublishCheck(ctx, accountID, flashcardID, anchorcheck.ReasonAnchorRepaired)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to queue anchor check",
				slog.String("account_id", accountID),
				slog.String("flashcard_id", flashcardID),
				slog.String("error", err.Error()),
			)
		} else {
			checkID = cid
		}
	}

	logger.InfoContext(ctx, "ReferencePoint/repair completed",
		slog.String("account_id", accountID),
		slog.String("flashcard_id", flashcardID),
		slog.String("reference_id", id),
		slog.String("strategy", string(match.Strategy)),
	)

	return plugincontract.PluginInvocationResponse{
		MethodResponse: plugincontract.MethodResponse{
			Name: "ReferencePoint/repair",
			Args: map[string]any{
				"accountId":   accountID,
				"flashcardId": flashcardID,
				"id":          id,
				"strategy":    string(match.Strategy),
				"start":       match.Start,
				"end":         match.End,
				"ambiguous":   match.Ambiguous,
				"checkId":     checkID,
			},
			ClientID: request.ClientID,
		},
	}, nil
}

func (h *handler) serverFail(ctx context.Context, clientID, accountID, flashcardID string, err error) plugincontract.PluginInvocationResponse {
	logger.ErrorContext(ctx, "ReferencePoint/repair failed",
		slog.String("account_id", accountID),
		slog.String("flashcard_id", flashcardID),
		slog.String("error", err.Error()),
	)
	return errorResponse(clientID, jmaperror.ServerFail(err.Error(), err))
}

// errorResponse creates an error response from a jmaperror.MethodError.
func errorResponse(clientID string, err *jmaperror.MethodError) plugincontract.PluginInvocationResponse {
	return plugincontract.PluginInvocationResponse{
		MethodResponse: plugincontract.MethodResponse{
			Name:     "error",
			Args:     err.ToMap(),
			ClientID: clientID,
		},
	}
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
	queueURL := os.Getenv("ANCHOR_CHECK_QUEUE_URL")

	dynamoClient := dbclient.NewClient(result.Config)

	// Warm the DynamoDB connection during init
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

	var publisher anchorcheck.Publisher
	if queueURL != "" {
		publisher = anchorcheck.NewSQSPublisher(sqs.NewFromConfig(result.Config), queueURL)
	}

	h := newHandler(
		flashcard.NewRepository(dynamoClient, tableName),
		flashcard.NewLoader(blobs),
		refpoint.NewDynamoDBRepository(dynamoClient, tableName),
		publisher,
	)
	result.Start(h.handle)
}
