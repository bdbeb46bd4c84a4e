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

// MoveService owns move records. Status changes go through guarded
// conditional writes so a terminal move never transitions again.
type MoveService struct {
	Store DocumentStore
}

// CreateMove opens a new move between a requester and a provider.
func (ms *MoveService) CreateMove(ctx context.Context, requesterID, providerID string) (*models.Move, error) {
	if requesterID == "" || providerID == "" || requesterID == providerID {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "a move needs two distinct participants")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	move := models.Move{
		MoveID:      uuid.NewString(),
		RequesterID: requesterID,
		ProviderID:  providerID,
		Status:      models.MoveStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := ms.Store.PutItem(ctx, models.MovesTable, move); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to create move", err)
	}

	log.Printf("🚚 Move %s opened: %s -> %s", move.MoveID, requesterID, providerID)
	return &move, nil
}

// GetMove fetches a move record by id.
func (ms *MoveService) GetMove(ctx context.Context, moveID string) (*models.Move, error) {
	key := map[string]types.AttributeValue{
		"moveId": &types.AttributeValueMemberS{Value: moveID},
	}

	item, err := ms.Store.GetItem(ctx, models.MovesTable, key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to load move", err)
	}
	if item == nil {
		return nil, apperrors.New(apperrors.KindNotFound, fmt.Sprintf("move %s does not exist", moveID))
	}

	var move models.Move
	if err := attributevalue.UnmarshalMap(item, &move); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to parse move", err)
	}
	return &move, nil
}

// LinkSession attaches the coordination session to the move record.
func (ms *MoveService) LinkSession(ctx context.Context, moveID, sessionID string) error {
	_, err := ms.setFields(ctx, moveID,
		map[string]interface{}{"sessionId": sessionID},
		"attribute_exists(moveId)", nil, nil)
	if err == ErrConditionFailed {
		return apperrors.New(apperrors.KindNotFound, fmt.Sprintf("move %s does not exist", moveID))
	}
	return err
}

// MarkConfirmed transitions the move to CONFIRMED. Invoked by the
// confirmation handshake once both parties have committed; refuses to
// resurrect a terminal move.
func (ms *MoveService) MarkConfirmed(ctx context.Context, moveID string) error {
	return ms.transition(ctx, moveID, models.MoveStatusConfirmed,
		"#status <> :canceled AND #status <> :completed",
		map[string]types.AttributeValue{
			":canceled":  &types.AttributeValueMemberS{Value: models.MoveStatusCanceled},
			":completed": &types.AttributeValueMemberS{Value: models.MoveStatusCompleted},
		})
}

// MarkCanceled transitions the move to CANCELED. Idempotent: canceling an
// already canceled move is a no-op; a completed move cannot be canceled.
func (ms *MoveService) MarkCanceled(ctx context.Context, moveID string) error {
	err := ms.transition(ctx, moveID, models.MoveStatusCanceled,
		"#status <> :completed",
		map[string]types.AttributeValue{
			":completed": &types.AttributeValueMemberS{Value: models.MoveStatusCompleted},
		})
	return err
}

// MarkCompleted closes out a confirmed move.
func (ms *MoveService) MarkCompleted(ctx context.Context, moveID string) error {
	return ms.transition(ctx, moveID, models.MoveStatusCompleted,
		"#status = :confirmed",
		map[string]types.AttributeValue{
			":confirmed": &types.AttributeValueMemberS{Value: models.MoveStatusConfirmed},
		})
}

func (ms *MoveService) transition(ctx context.Context, moveID, newStatus, statusCondition string, conditionValues map[string]types.AttributeValue) error {
	condition := "attribute_exists(moveId)"
	if statusCondition != "" {
		condition += " AND " + statusCondition
	}

	_, err := ms.setFields(ctx, moveID, map[string]interface{}{
		"status":    newStatus,
		"updatedAt": time.Now().UTC().Format(time.RFC3339Nano),
	}, condition, conditionValues, map[string]string{"#status": "status"})

	if err == ErrConditionFailed {
		move, getErr := ms.GetMove(ctx, moveID)
		if getErr != nil {
			return getErr
		}
		if move.Status == newStatus {
			return nil // concurrent writer already got it there
		}
		return apperrors.New(apperrors.KindInvalidState,
			fmt.Sprintf("move %s cannot go from %s to %s", moveID, move.Status, newStatus))
	}
	if err != nil {
		return err
	}

	log.Printf("✅ Move %s is now %s", moveID, newStatus)
	return nil
}

func (ms *MoveService) setFields(
	ctx context.Context,
	moveID string,
	set map[string]interface{},
	condition string,
	conditionValues map[string]types.AttributeValue,
	conditionNames map[string]string,
) (map[string]types.AttributeValue, error) {
	expressionValues := map[string]types.AttributeValue{}
	expressionNames := map[string]string{}

	updateExpression := "SET"
	first := true
	for field, value := range set {
		marshaled, err := attributevalue.Marshal(value)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindInvalidArgument, "unsupported field value", err)
		}
		if !first {
			updateExpression += ","
		}
		updateExpression += fmt.Sprintf(" #%s = :%s", field, field)
		expressionNames["#"+field] = field
		expressionValues[":"+field] = marshaled
		first = false
	}

	for name, value := range conditionValues {
		expressionValues[name] = value
	}
	for name, attr := range conditionNames {
		expressionNames[name] = attr
	}

	key := map[string]types.AttributeValue{
		"moveId": &types.AttributeValueMemberS{Value: moveID},
	}

	item, err := ms.Store.UpdateItem(ctx, models.MovesTable, updateExpression, condition, key, expressionValues, expressionNames)
	if err == ErrConditionFailed {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to update move", err)
	}
	return item, nil
}
