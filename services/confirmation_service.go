package services

import (
	"context"
	"log"
	"time"

	apperrors "moveflow_server/errors"
	"moveflow_server/models"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ConfirmOutcome reports what a confirmation call did. MoveStatusSynced is
// false only in the partial-success case: the confirmation flags are
// durably true but the move record's status write failed; SyncErr then
// carries the cause so the caller can re-drive just that half.
type ConfirmOutcome struct {
	Session          models.Session
	State            models.ConfirmationState
	Repeat           bool
	MoveStatusSynced bool
	SyncErr          error
}

// ConfirmationService drives the two-step handshake over a session
// document. The order is a business rule, not a symmetric handshake: the
// provider commits first, only then may the requester. Out-of-order
// attempts are rejected, never silently accepted.
type ConfirmationService struct {
	Sessions *SessionService
	Moves    *MoveService
	Notifier Notifier
}

// ConfirmAsProvider records the provider's commitment. Legal from OPEN;
// calling again once confirmed is an idempotent no-op.
func (cs *ConfirmationService) ConfirmAsProvider(ctx context.Context, sessionID string) (*ConfirmOutcome, error) {
	mu := cs.Sessions.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := cs.Sessions.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state := models.ConfirmationStateOf(session.ProviderConfirmed, session.RequesterConfirmed)
	if _, repeat := models.CanConfirm(state, models.RoleProvider); repeat {
		return &ConfirmOutcome{Session: *session, State: state, Repeat: true, MoveStatusSynced: true}, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	updated, err := cs.Sessions.applyUpdate(ctx, sessionID,
		map[string]interface{}{
			"providerConfirmed":   true,
			"providerConfirmedAt": now,
		},
		nil,
		"attribute_exists(sessionId) AND #providerConfirmed = :expectFalse",
		map[string]types.AttributeValue{
			":expectFalse": &types.AttributeValueMemberBOOL{Value: false},
		},
		map[string]string{"#providerConfirmed": "providerConfirmed"},
	)
	if err == ErrConditionFailed {
		// Another process confirmed in between; that is the same outcome.
		session, err = cs.Sessions.getSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if session.ProviderConfirmed {
			state := models.ConfirmationStateOf(true, session.RequesterConfirmed)
			return &ConfirmOutcome{Session: *session, State: state, Repeat: true, MoveStatusSynced: true}, nil
		}
		return nil, apperrors.New(apperrors.KindStoreUnavailable, "conflicting write on session, retry")
	}
	if err != nil {
		return nil, err
	}

	log.Printf("🤝 Provider %s confirmed session %s", updated.ProviderID, sessionID)
	cs.Sessions.Hub.PublishSession(*updated)
	cs.notify(updated.RequesterID, "Move confirmed by your provider",
		updated.ProviderName+" confirmed. Confirm on your side to finalize the move.")

	return &ConfirmOutcome{
		Session:          *updated,
		State:            models.ConfirmationProviderConfirmed,
		MoveStatusSynced: true,
	}, nil
}

// ConfirmAsRequester records the requester's commitment. Legal only once
// the provider has confirmed; the guard is evaluated by the store against
// the latest committed document, so an approval based on a stale read fails
// instead of silently succeeding. When both flags become true the linked
// move transitions to CONFIRMED; if that side effect fails the flags stay
// true and the outcome flags the missing half.
func (cs *ConfirmationService) ConfirmAsRequester(ctx context.Context, sessionID string) (*ConfirmOutcome, error) {
	mu := cs.Sessions.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := cs.Sessions.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state := models.ConfirmationStateOf(session.ProviderConfirmed, session.RequesterConfirmed)
	allowed, repeat := models.CanConfirm(state, models.RoleRequester)
	if !allowed {
		return nil, apperrors.New(apperrors.KindPreconditionFailed, "the provider must confirm first")
	}
	if repeat {
		outcome := &ConfirmOutcome{Session: *session, State: state, Repeat: true}
		outcome.MoveStatusSynced, outcome.SyncErr = cs.syncMoveStatus(ctx, session)
		return outcome, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	updated, err := cs.Sessions.applyUpdate(ctx, sessionID,
		map[string]interface{}{
			"requesterConfirmed":   true,
			"requesterConfirmedAt": now,
		},
		nil,
		"attribute_exists(sessionId) AND #providerConfirmed = :expectTrue",
		map[string]types.AttributeValue{
			":expectTrue": &types.AttributeValueMemberBOOL{Value: true},
		},
		map[string]string{"#providerConfirmed": "providerConfirmed"},
	)
	if err == ErrConditionFailed {
		// The committed document disagrees with what we read, e.g. a cancel
		// reset the provider flag in another process.
		if _, getErr := cs.Sessions.getSession(ctx, sessionID); getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.New(apperrors.KindPreconditionFailed, "the provider must confirm first")
	}
	if err != nil {
		return nil, err
	}

	log.Printf("🤝 Requester %s confirmed session %s, handshake complete", updated.RequesterID, sessionID)
	cs.Sessions.Hub.PublishSession(*updated)
	cs.notify(updated.ProviderID, "Move finalized", updated.RequesterName+" confirmed. The move is on.")

	outcome := &ConfirmOutcome{Session: *updated, State: models.ConfirmationBothConfirmed}
	outcome.MoveStatusSynced, outcome.SyncErr = cs.syncMoveStatus(ctx, updated)
	return outcome, nil
}

// syncMoveStatus drives the cross-entity side effect: both flags true means
// the move record must read CONFIRMED. Runs strictly after the flags are
// durable; never rolls them back on failure.
func (cs *ConfirmationService) syncMoveStatus(ctx context.Context, session *models.Session) (bool, error) {
	if session.MoveID == "" {
		return true, nil
	}
	if err := cs.Moves.MarkConfirmed(ctx, session.MoveID); err != nil {
		log.Printf("⚠️ Session %s confirmed but move %s status not updated: %v", session.SessionID, session.MoveID, err)
		return false, err
	}
	return true, nil
}

// ReconcileMoveStatus repairs the recoverable inconsistency left by a
// partial confirm: both flags true but the move not CONFIRMED. Returns
// whether move and session agree afterwards.
func (cs *ConfirmationService) ReconcileMoveStatus(ctx context.Context, sessionID string) (bool, error) {
	session, err := cs.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !session.ProviderConfirmed || !session.RequesterConfirmed {
		return true, nil
	}

	synced, syncErr := cs.syncMoveStatus(ctx, session)
	return synced, syncErr
}

// ResetOnCancel clears both confirmation flags and timestamps, whatever
// their current values. Triggered by move cancellation, not by a party;
// idempotent by construction.
func (cs *ConfirmationService) ResetOnCancel(ctx context.Context, sessionID string) error {
	mu := cs.Sessions.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	updated, err := cs.Sessions.applyUpdate(ctx, sessionID,
		map[string]interface{}{
			"providerConfirmed":  false,
			"requesterConfirmed": false,
		},
		[]string{"providerConfirmedAt", "requesterConfirmedAt"},
		"attribute_exists(sessionId)", nil, nil,
	)
	if err != nil {
		return err
	}

	log.Printf("🔄 Confirmation state reset for session %s", sessionID)
	cs.Sessions.Hub.PublishSession(*updated)
	return nil
}

func (cs *ConfirmationService) notify(participantID, title, body string) {
	if cs.Notifier == nil {
		return
	}
	// Fire and forget; delivery is never awaited.
	go cs.Notifier.Notify(participantID, title, body)
}
