package services

import (
	"context"
	"fmt"
	"log"
	"time"

	apperrors "moveflow_server/errors"
	"moveflow_server/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// MatchRequestService runs the partner-match lifecycle: pending at
// creation, then exactly one transition to accepted or rejected. Terminal
// records are immutable. Responders discover incoming requests by polling
// ListPendingIncoming; no push subscription exists for matches.
type MatchRequestService struct {
	Store    DocumentStore
	Notifier Notifier
}

// Propose creates a pending request from one participant to another. An
// existing pending request for the same ordered pair is reused instead of
// stacking duplicates.
func (mrs *MatchRequestService) Propose(ctx context.Context, fromID, toID string) (*models.MatchRequest, error) {
	if fromID == "" || toID == "" {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "fromId and toId must be non-empty")
	}
	if fromID == toID {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "cannot send a match request to yourself")
	}

	if existing, err := mrs.findPending(ctx, fromID, toID); err != nil {
		return nil, err
	} else if existing != nil {
		log.Printf("ℹ️ Pending match request %s -> %s already exists, reusing %s", fromID, toID, existing.RequestID)
		return existing, nil
	}

	request := models.MatchRequest{
		RequestID: uuid.NewString(),
		FromID:    fromID,
		ToID:      toID,
		Status:    models.MatchRequestPending,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	if err := mrs.Store.PutItem(ctx, models.MatchRequestsTable, request); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to create match request", err)
	}

	log.Printf("💌 Match request %s: %s -> %s", request.RequestID, fromID, toID)
	mrs.notify(toID, "New match request", "Someone wants to team up with you for a move.")
	return &request, nil
}

// Accept moves a pending request to its accepted terminal state.
func (mrs *MatchRequestService) Accept(ctx context.Context, requestID string) (*models.MatchRequest, error) {
	request, err := mrs.respond(ctx, requestID, models.MatchRequestAccepted)
	if err != nil {
		return nil, err
	}
	mrs.notify(request.FromID, "Match request accepted", "Your match request was accepted. Open a session to plan the move.")
	return request, nil
}

// Reject moves a pending request to its rejected terminal state.
func (mrs *MatchRequestService) Reject(ctx context.Context, requestID string) (*models.MatchRequest, error) {
	return mrs.respond(ctx, requestID, models.MatchRequestRejected)
}

func (mrs *MatchRequestService) respond(ctx context.Context, requestID, newStatus string) (*models.MatchRequest, error) {
	if requestID == "" {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "requestId must be non-empty")
	}

	key := map[string]types.AttributeValue{
		"requestId": &types.AttributeValueMemberS{Value: requestID},
	}

	item, err := mrs.Store.GetItem(ctx, models.MatchRequestsTable, key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to load match request", err)
	}
	if item == nil {
		return nil, apperrors.New(apperrors.KindNotFound, fmt.Sprintf("match request %s does not exist", requestID))
	}

	updateExpression := "SET #status = :status, #respondedAt = :respondedAt"
	expressionValues := map[string]types.AttributeValue{
		":status":      &types.AttributeValueMemberS{Value: newStatus},
		":respondedAt": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		":pending":     &types.AttributeValueMemberS{Value: models.MatchRequestPending},
	}
	expressionNames := map[string]string{
		"#status":      "status",
		"#respondedAt": "respondedAt",
	}

	// The condition arbitrates concurrent responses: only one transition
	// ever leaves pending.
	updated, err := mrs.Store.UpdateItem(ctx, models.MatchRequestsTable, updateExpression, "#status = :pending", key, expressionValues, expressionNames)
	if err == ErrConditionFailed {
		return nil, apperrors.New(apperrors.KindInvalidState,
			fmt.Sprintf("match request %s was already answered", requestID))
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to update match request", err)
	}

	var request models.MatchRequest
	if err := attributevalue.UnmarshalMap(updated, &request); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to parse match request", err)
	}

	log.Printf("✅ Match request %s is now %s", requestID, newStatus)
	return &request, nil
}

// matchRequestPageSize bounds the items DynamoDB reads per query page. The
// limit counts items read before the filter runs, so every lookup pages
// with LastEvaluatedKey until the partition is exhausted; a single limited
// query could miss matches hiding behind filtered-out items.
const matchRequestPageSize = 100

// ListPendingIncoming returns the pending requests addressed to a
// participant. Order is unspecified; clients poll this endpoint.
func (mrs *MatchRequestService) ListPendingIncoming(ctx context.Context, toID string) ([]models.MatchRequest, error) {
	if toID == "" {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "toId must be non-empty")
	}

	keyCondition := "#toId = :toId"
	expressionValues := map[string]types.AttributeValue{
		":toId":    &types.AttributeValueMemberS{Value: toID},
		":pending": &types.AttributeValueMemberS{Value: models.MatchRequestPending},
	}
	expressionNames := map[string]string{
		"#toId":   "toId",
		"#status": "status",
	}

	requests := []models.MatchRequest{}
	var startKey map[string]types.AttributeValue
	for {
		items, lastKey, err := mrs.Store.QueryItemsWithIndex(ctx, models.MatchRequestsTable, models.ToIDIndex,
			keyCondition, expressionValues, expressionNames, "#status = :pending", matchRequestPageSize, startKey)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to fetch match requests", err)
		}

		var page []models.MatchRequest
		if err := attributevalue.UnmarshalListOfMaps(items, &page); err != nil {
			return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to parse match requests", err)
		}
		requests = append(requests, page...)

		if lastKey == nil {
			return requests, nil
		}
		startKey = lastKey
	}
}

func (mrs *MatchRequestService) findPending(ctx context.Context, fromID, toID string) (*models.MatchRequest, error) {
	keyCondition := "#toId = :toId"
	expressionValues := map[string]types.AttributeValue{
		":toId":    &types.AttributeValueMemberS{Value: toID},
		":fromId":  &types.AttributeValueMemberS{Value: fromID},
		":pending": &types.AttributeValueMemberS{Value: models.MatchRequestPending},
	}
	expressionNames := map[string]string{
		"#toId":   "toId",
		"#fromId": "fromId",
		"#status": "status",
	}

	var startKey map[string]types.AttributeValue
	for {
		items, lastKey, err := mrs.Store.QueryItemsWithIndex(ctx, models.MatchRequestsTable, models.ToIDIndex,
			keyCondition, expressionValues, expressionNames, "#fromId = :fromId AND #status = :pending", matchRequestPageSize, startKey)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to check for pending request", err)
		}

		if len(items) > 0 {
			var request models.MatchRequest
			if err := attributevalue.UnmarshalMap(items[0], &request); err != nil {
				return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to parse match request", err)
			}
			return &request, nil
		}
		if lastKey == nil {
			return nil, nil
		}
		startKey = lastKey
	}
}

func (mrs *MatchRequestService) notify(participantID, title, body string) {
	if mrs.Notifier == nil {
		return
	}
	go mrs.Notifier.Notify(participantID, title, body)
}
