package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	apperrors "moveflow_server/errors"
	"moveflow_server/models"

	"github.com/google/uuid"
)

// SessionCoordinator is the orchestration surface exposed to the outer
// layers. It composes the key derivation, session store, confirmation
// machine and move records into the operations callers actually invoke.
type SessionCoordinator struct {
	Sessions      *SessionService
	Confirmations *ConfirmationService
	Moves         *MoveService
	Profiles      *UserProfileService
	Notifier      Notifier
}

// OpenOrReuseSession resolves the canonical session for the pair, creating
// it on first use. Safe to call any number of times for the same pair; only
// the first call has side effects.
func (sc *SessionCoordinator) OpenOrReuseSession(ctx context.Context, requesterID, providerID, moveID string) (*models.Session, error) {
	requester, err := sc.Profiles.GetUserProfile(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	provider, err := sc.Profiles.GetUserProfile(ctx, providerID)
	if err != nil {
		return nil, err
	}

	session, created, err := sc.Sessions.GetOrCreateSession(ctx, *requester, *provider, moveID)
	if err != nil {
		return nil, err
	}

	if created && moveID != "" {
		if err := sc.Moves.LinkSession(ctx, moveID, session.SessionID); err != nil {
			// The session exists and is usable; the back-link is repairable.
			log.Printf("⚠️ Session %s created but move %s not linked: %v", session.SessionID, moveID, err)
		}
	}
	return session, nil
}

// OpenMove creates a move record and its coordination session in one call.
func (sc *SessionCoordinator) OpenMove(ctx context.Context, requesterID, providerID string) (*models.Move, *models.Session, error) {
	move, err := sc.Moves.CreateMove(ctx, requesterID, providerID)
	if err != nil {
		return nil, nil, err
	}

	session, err := sc.OpenOrReuseSession(ctx, requesterID, providerID, move.MoveID)
	if err != nil {
		return nil, nil, err
	}
	return move, session, nil
}

// Send validates and appends a message to the session log.
func (sc *SessionCoordinator) Send(ctx context.Context, sessionID, senderID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "message text must not be empty")
	}

	session, err := sc.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.HasParticipant(senderID) {
		return nil, apperrors.New(apperrors.KindForbidden, fmt.Sprintf("%s is not a party to this session", senderID))
	}

	senderName := session.RequesterName
	recipientID := session.ProviderID
	if senderID == session.ProviderID {
		senderName = session.ProviderName
		recipientID = session.RequesterID
	}

	message := models.Message{
		SessionID:  sessionID,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		MessageID:  uuid.NewString(),
		SenderID:   senderID,
		SenderName: senderName,
		Content:    text,
	}

	if err := sc.Sessions.AppendMessage(ctx, sessionID, message); err != nil {
		return nil, err
	}

	if sc.Notifier != nil {
		go sc.Notifier.Notify(recipientID, "New message from "+senderName, text)
	}
	return &message, nil
}

// Confirm resolves the acting participant's role against the session's
// fixed role fields and delegates to the matching handshake step. A caller
// who is neither party is rejected before anything is written.
func (sc *SessionCoordinator) Confirm(ctx context.Context, sessionID, actorID string) (*ConfirmOutcome, error) {
	session, err := sc.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch actorID {
	case session.ProviderID:
		return sc.Confirmations.ConfirmAsProvider(ctx, sessionID)
	case session.RequesterID:
		return sc.Confirmations.ConfirmAsRequester(ctx, sessionID)
	default:
		return nil, apperrors.New(apperrors.KindForbidden, fmt.Sprintf("%s is not a party to this session", actorID))
	}
}

// CancelMove marks the move CANCELED and resets the linked session's
// confirmation state. Both writes are attempted even if one fails; this is
// a best-effort compensating action, not a distributed transaction, so the
// caller gets every failure that occurred.
func (sc *SessionCoordinator) CancelMove(ctx context.Context, moveID string) error {
	move, err := sc.Moves.GetMove(ctx, moveID)
	if err != nil {
		return err
	}

	cancelErr := sc.Moves.MarkCanceled(ctx, moveID)

	var resetErr error
	if move.SessionID != "" {
		resetErr = sc.Confirmations.ResetOnCancel(ctx, move.SessionID)
	}

	if cancelErr != nil || resetErr != nil {
		return errors.Join(cancelErr, resetErr)
	}

	log.Printf("🛑 Move %s canceled, session %s reset", moveID, move.SessionID)
	return nil
}

// CompleteMove closes out a confirmed move.
func (sc *SessionCoordinator) CompleteMove(ctx context.Context, moveID string) error {
	return sc.Moves.MarkCompleted(ctx, moveID)
}
