package services

import (
	"context"
	"testing"

	apperrors "moveflow_server/errors"
	"moveflow_server/models"

	"github.com/stretchr/testify/require"
)

func TestOpenMoveCreatesRecordAndSession(t *testing.T) {
	env := newTestEnv()
	env.seedProfiles(t, alice, bob)
	ctx := context.Background()

	move, session, err := env.coordinator.OpenMove(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Equal(t, models.MoveStatusOpen, move.Status)
	require.Equal(t, "alice#bob", session.SessionID)
	require.Equal(t, move.MoveID, session.MoveID)

	// The back-link from move to session is written too.
	got, err := env.moves.GetMove(ctx, move.MoveID)
	require.NoError(t, err)
	require.Equal(t, session.SessionID, got.SessionID)
}

func TestOpenOrReuseSessionRequiresProfiles(t *testing.T) {
	env := newTestEnv()
	env.seedProfiles(t, alice)

	_, err := env.coordinator.OpenOrReuseSession(context.Background(), "alice", "bob", "")
	require.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestOpenOrReuseSessionIsRepeatable(t *testing.T) {
	env := newTestEnv()
	env.seedProfiles(t, alice, bob)
	ctx := context.Background()

	first, err := env.coordinator.OpenOrReuseSession(ctx, "alice", "bob", "")
	require.NoError(t, err)
	second, err := env.coordinator.OpenOrReuseSession(ctx, "bob", "alice", "")
	require.NoError(t, err)
	require.Equal(t, first.SessionID, second.SessionID)
	require.Equal(t, 1, env.store.createdCount(models.SessionsTable))
}

func TestSendValidatesTextAndSender(t *testing.T) {
	env := newTestEnv()
	env.seedProfiles(t, alice, bob)
	ctx := context.Background()

	session, err := env.coordinator.OpenOrReuseSession(ctx, "alice", "bob", "")
	require.NoError(t, err)

	_, err = env.coordinator.Send(ctx, session.SessionID, "alice", "   ")
	require.True(t, apperrors.IsKind(err, apperrors.KindInvalidArgument))

	_, err = env.coordinator.Send(ctx, session.SessionID, "carol", "let me in")
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	message, err := env.coordinator.Send(ctx, session.SessionID, "bob", "  loading at nine  ")
	require.NoError(t, err)
	require.Equal(t, "loading at nine", message.Content)
	require.Equal(t, "Bob", message.SenderName)

	updated, err := env.sessions.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	require.Equal(t, "loading at nine", updated.LastMessageText)
	require.Equal(t, "bob", updated.LastMessageSenderID)
}

func TestConfirmResolvesRoleFromSession(t *testing.T) {
	env := newTestEnv()
	env.seedProfiles(t, alice, bob)
	ctx := context.Background()

	move, session, err := env.coordinator.OpenMove(ctx, "alice", "bob")
	require.NoError(t, err)

	// A stranger is rejected before any write.
	_, err = env.coordinator.Confirm(ctx, session.SessionID, "carol")
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	// The requester cannot lead the handshake.
	_, err = env.coordinator.Confirm(ctx, session.SessionID, "alice")
	require.True(t, apperrors.IsKind(err, apperrors.KindPreconditionFailed))

	outcome, err := env.coordinator.Confirm(ctx, session.SessionID, "bob")
	require.NoError(t, err)
	require.Equal(t, models.ConfirmationProviderConfirmed, outcome.State)

	outcome, err = env.coordinator.Confirm(ctx, session.SessionID, "alice")
	require.NoError(t, err)
	require.Equal(t, models.ConfirmationBothConfirmed, outcome.State)
	require.True(t, outcome.MoveStatusSynced)

	got, err := env.moves.GetMove(ctx, move.MoveID)
	require.NoError(t, err)
	require.Equal(t, models.MoveStatusConfirmed, got.Status)
}

func TestCancelMoveResetsSessionState(t *testing.T) {
	env := newTestEnv()
	env.seedProfiles(t, alice, bob)
	ctx := context.Background()

	move, session, err := env.coordinator.OpenMove(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = env.coordinator.Confirm(ctx, session.SessionID, "bob")
	require.NoError(t, err)

	require.NoError(t, env.coordinator.CancelMove(ctx, move.MoveID))

	got, err := env.moves.GetMove(ctx, move.MoveID)
	require.NoError(t, err)
	require.Equal(t, models.MoveStatusCanceled, got.Status)

	reset, err := env.sessions.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	require.False(t, reset.ProviderConfirmed)
	require.False(t, reset.RequesterConfirmed)
}

func TestCancelMoveStillResetsSessionWhenMoveIsTerminal(t *testing.T) {
	env := newTestEnv()
	env.seedProfiles(t, alice, bob)
	ctx := context.Background()

	move, session, err := env.coordinator.OpenMove(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = env.coordinator.Confirm(ctx, session.SessionID, "bob")
	require.NoError(t, err)
	_, err = env.coordinator.Confirm(ctx, session.SessionID, "alice")
	require.NoError(t, err)
	require.NoError(t, env.coordinator.CompleteMove(ctx, move.MoveID))

	// Canceling a completed move fails, but the compensating session reset
	// still runs and its result is reported alongside.
	err = env.coordinator.CancelMove(ctx, move.MoveID)
	require.Error(t, err)
	require.True(t, apperrors.IsKind(err, apperrors.KindInvalidState))

	reset, err := env.sessions.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	require.False(t, reset.ProviderConfirmed)
	require.False(t, reset.RequesterConfirmed)
}

func TestCancelMoveUnknownMove(t *testing.T) {
	env := newTestEnv()

	err := env.coordinator.CancelMove(context.Background(), "missing")
	require.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestCompleteMoveRequiresConfirmedMove(t *testing.T) {
	env := newTestEnv()
	env.seedProfiles(t, alice, bob)
	ctx := context.Background()

	move, _, err := env.coordinator.OpenMove(ctx, "alice", "bob")
	require.NoError(t, err)

	err = env.coordinator.CompleteMove(ctx, move.MoveID)
	require.True(t, apperrors.IsKind(err, apperrors.KindInvalidState))
}
