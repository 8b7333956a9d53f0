// Package main implements the Highlight/project Lambda handler.
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
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/blob"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/flashcard"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/htmltree"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/refpoint"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/resolver"
	"github.com/jarrod-lowe/jmap-service-libs/awsinit"
	"github.com/jarrod-lowe/jmap-service-libs/dbclient"
	"github.com/jarrod-lowe/jmap-service-libs/jmaperror"
	"github.com/jarrod-lowe/jmap-service-libs/logging"
	"github.com/jarrod-lowe/jmap-service-libs/plugincontract"
	"github.com/jarrod-lowe/jmap-service-libs/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
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

// ReferencePointRepository defines the interface for listing reference points.
type ReferencePointRepository interface {
	ListByFlashcard(ctx context.Context, accountID, flashcardID string) ([]*refpoint.ReferencePoint, error)
}

// handler implements the Highlight/project logic.
type handler struct {
	cards  FlashcardRepository
	loader ContentLoader
	points ReferencePointRepository
}

// newHandler creates a new handler.
func newHandler(cards FlashcardRepository, loader ContentLoader, points ReferencePointRepository) *handler {
	return &handler{cards: cards, loader: loader, points: points}
}

// handle processes a Highlight/project request.
func (h *handler) handle(ctx context.Context, request plugincontract.PluginInvocationRequest) (plugincontract.PluginInvocationResponse, error) {
	tracer := tracing.Tracer("flashcard-highlight-project")
	ctx, span := tracer.Start(ctx, "HighlightProjectHandler")
	defer span.End()

	if request.Method != "Highlight/project" {
		return errorResponse(request.ClientID, jmaperror.UnknownMethod("This handler only supports Highlight/project")), nil
	}

	accountID := request.Args.StringOr("accountId", request.AccountID)
	flashcardID, ok := request.Args.String("flashcardId")
	if !ok || flashcardID == "" {
		return errorResponse(request.ClientID, jmaperror.InvalidArguments("flashcardId argument is required")), nil
	}
	override, hasOverride := request.Args.String("html")
	if request.Args.Has("html") && !hasOverride {
		return errorResponse(request.ClientID, jmaperror.InvalidArguments("html must be a string")), nil
	}

	span.SetAttributes(
		tracing.AccountID(accountID),
		attribute.String("flashcard_id", flashcardID),
	)

	var html string
	var points []*refpoint.ReferencePoint

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		item, err := h.cards.GetFlashcard(gctx, accountID, flashcardID)
		if err != nil {
			return err
		}
		if hasOverride {
			html = override
			return nil
		}
		html, err = h.loader.LoadContent(gctx, item)
		return err
	})
	g.Go(func() error {
		var err error
		points, err = h.points.ListByFlashcard(gctx, accountID, flashcardID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, flashcard.ErrFlashcardNotFound) {
			return errorResponse(request.ClientID, &jmaperror.MethodError{
				ErrType:     "notFound",
				Description: "Flashcard " + flashcardID + " does not exist",
			}), nil
		}
		tracing.RecordError(span, err)
		logger.ErrorContext(ctx, "Failed to load flashcard",
			slog.String("account_id", accountID),
			slog.String("flashcard_id", flashcardID),
			slog.String("error", err.Error()),
		)
		return errorResponse(request.ClientID, jmaperror.ServerFail(err.Error(), err)), nil
	}

	doc, err := htmltree.ParseString(html)
	if err != nil {
		tracing.RecordError(span, err)
		return errorResponse(request.ClientID, jmaperror.ServerFail("flashcard content is not valid HTML", err)), nil
	}

	// Wrappers carry data-reference-id; activation is handled by the client
	// that renders the returned HTML, so no registry is kept here.
	result := resolver.Project(doc, dereference(points), nil)

	rendered, err := htmltree.RenderString(doc)
	if err != nil {
		tracing.RecordError(span, err)
		return errorResponse(request.ClientID, jmaperror.ServerFail(err.Error(), err)), nil
	}

	list := make([]any, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		list = append(list, outcomeMap(o))
		if o.Status != resolver.StatusResolved {
			span.AddEvent("reference.unresolved", trace.WithAttributes(
				attribute.String("reference_id", o.ReferenceID),
				attribute.String("status", string(o.Status)),
			))
		}
	}

	var notResolved any
	if ids := result.Unresolved(); len(ids) > 0 {
		notResolved = ids
	}

	span.SetAttributes(
		attribute.Int("reference_count", len(points)),
		attribute.Int("applied", result.Applied),
	)
	logger.InfoContext(ctx, "Highlight/project completed",
		slog.String("account_id", accountID),
		slog.String("flashcard_id", flashcardID),
		slog.Int("reference_count", len(points)),
		slog.Int("applied", result.Applied),
	)

	return plugincontract.PluginInvocationResponse{
		MethodResponse: plugincontract.MethodResponse{
			Name: "Highlight/project",
			Args: map[string]any{
				"accountId":   accountID,
				"flashcardId": flashcardID,
				"html":        rendered,
				"applied":     result.Applied,
				"list":        list,
				"notResolved": notResolved,
			},
			ClientID: request.ClientID,
		},
	}, nil
}

func outcomeMap(o resolver.Outcome) map[string]any {
	m := map[string]any{
		"id":     o.ReferenceID,
		"status": string(o.Status),
	}
	if o.Strategy != "" {
		m["strategy"] = string(o.Strategy)
		m["start"] = o.Start
		m["end"] = o.End
		m["ambiguous"] = o.Ambiguous
	}
	return m
}

func dereference(points []*refpoint.ReferencePoint) []refpoint.ReferencePoint {
	out := make([]refpoint.ReferencePoint, 0, len(points))
	for _, p := range points {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
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

	h := newHandler(
		flashcard.NewRepository(dynamoClient, tableName),
		flashcard.NewLoader(blobs),
		refpoint.NewDynamoDBRepository(dynamoClient, tableName),
	)
	result.Start(h.handle)
}
