// Package main implements the ReferencePoint/diagnose Lambda handler.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/blob"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/diagnose"
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

const defaultMaxIDs = 50

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

// handler implements the ReferencePoint/diagnose logic.
type handler struct {
	cards  FlashcardRepository
	loader ContentLoader
	points ReferencePointRepository
	maxIDs int
}

// newHandler creates a new handler.
func newHandler(cards FlashcardRepository, loader ContentLoader, points ReferencePointRepository, maxIDs int) *handler {
	if maxIDs <= 0 {
		maxIDs = defaultMaxIDs
	}
	return &handler{cards: cards, loader: loader, points: points, maxIDs: maxIDs}
}

// handle processes a ReferencePoint/diagnose request.
func (h *handler) handle(ctx context.Context, request plugincontract.PluginInvocationRequest) (plugincontract.PluginInvocationResponse, error) {
	tracer := tracing.Tracer("flashcard-referencepoint-diagnose")
	ctx, span := tracer.Start(ctx, "ReferencePointDiagnoseHandler")
	defer span.End()

	if request.Method != "ReferencePoint/diagnose" {
		return errorResponse(request.ClientID, jmaperror.UnknownMethod("This handler only supports ReferencePoint/diagnose")), nil
	}

	accountID := request.Args.StringOr("accountId", request.AccountID)
	flashcardID, ok := request.Args.String("flashcardId")
	if !ok || flashcardID == "" {
		return errorResponse(request.ClientID, jmaperror.InvalidArguments("flashcardId argument is required")), nil
	}
	if !request.Args.Has("ids") {
		return errorResponse(request.ClientID, jmaperror.InvalidArguments("ids argument is required")), nil
	}
	ids, ok := request.Args.StringSlice("ids")
	if !ok {
		return errorResponse(request.ClientID, jmaperror.InvalidArguments("ids must be an array of strings")), nil
	}
	if len(ids) > h.maxIDs {
		return errorResponse(request.ClientID, &jmaperror.MethodError{
			ErrType:     "requestTooLarge",
			Description: fmt.Sprintf("Too many ids; maximum is %d", h.maxIDs),
		}), nil
	}

	span.SetAttributes(
		tracing.AccountID(accountID),
		attribute.String("flashcard_id", flashcardID),
		attribute.Int("id_count", len(ids)),
	)

	var html string
	var points []*refpoint.ReferencePoint

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
	fullText := textindex.Build(doc).FullText

	byID := make(map[string]*refpoint.ReferencePoint, len(points))
	for _, p := range points {
		byID[p.ID] = p
	}

	list := make([]any, 0, len(ids))
	var notFound []string
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			notFound = append(notFound, id)
			continue
		}
		list = append(list, reportMap(diagnose.Diagnose(*p, fullText)))
	}

	var notFoundResult any
	if len(notFound) > 0 {
		notFoundResult = notFound
	}

	logger.InfoContext(ctx, "ReferencePoint/diagnose completed",
		slog.String("account_id", accountID),
		slog.String("flashcard_id", flashcardID),
		slog.Int("list_count", len(list)),
		slog.Int("not_found_count", len(notFound)),
	)

	return plugincontract.PluginInvocationResponse{
		MethodResponse: plugincontract.MethodResponse{
			Name: "ReferencePoint/diagnose",
			Args: map[string]any{
				"accountId":   accountID,
				"flashcardId": flashcardID,
				"list":        list,
				"notFound":    notFoundResult,
			},
			ClientID: request.ClientID,
		},
	}, nil
}

func reportMap(r diagnose.Report) map[string]any {
	candidates := make([]any, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		candidates = append(candidates, map[string]any{
			"text":          c.Text,
			"contextBefore": c.ContextBefore,
			"contextAfter":  c.ContextAfter,
			"start":         c.Start,
			"end":           c.End,
			"method":        string(c.Method),
			"score":         c.Score,
		})
	}
	return map[string]any{
		"id":           r.ReferenceID,
		"selectedText": r.SelectedText,
		"exact":        strategyMap(r.Exact),
		"canonical":    strategyMap(r.Canonical),
		"flexible":     strategyMap(r.Flexible),
		"candidates":   candidates,
		"suggestions":  r.Suggestions,
	}
}

func strategyMap(s diagnose.StrategyResult) map[string]any {
	return map[string]any{
		"found":       s.Found,
		"occurrences": s.Occurrences,
		"firstOffset": s.FirstOffset,
	}
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

	maxIDs := defaultMaxIDs
	if s := os.Getenv("MAX_DIAGNOSE_IDS"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			maxIDs = parsed
		}
	}

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
		maxIDs,
	)
	result.Start(h.handle)
}
