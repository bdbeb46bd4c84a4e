package services

import (
	"context"
	"testing"
	"time"

	"moveflow_server/models"

	"github.com/stretchr/testify/require"
)

// testEnv wires the full service graph over one in-memory store, the way
// main wires it over DynamoDB.
type testEnv struct {
	store         *memoryStore
	hub           *SessionHub
	sessions      *SessionService
	moves         *MoveService
	profiles      *UserProfileService
	confirmations *ConfirmationService
	matchRequests *MatchRequestService
	coordinator   *SessionCoordinator
}

func newTestEnv() *testEnv {
	store := newMemoryStore()
	hub := NewSessionHub()
	sessions := &SessionService{Store: store, Hub: hub}
	moves := &MoveService{Store: store}
	profiles := &UserProfileService{Store: store}
	confirmations := &ConfirmationService{Sessions: sessions, Moves: moves}

	return &testEnv{
		store:         store,
		hub:           hub,
		sessions:      sessions,
		moves:         moves,
		profiles:      profiles,
		confirmations: confirmations,
		matchRequests: &MatchRequestService{Store: store},
		coordinator: &SessionCoordinator{
			Sessions:      sessions,
			Confirmations: confirmations,
			Moves:         moves,
			Profiles:      profiles,
		},
	}
}

func (env *testEnv) seedProfiles(t *testing.T, users ...models.UserProfile) {
	t.Helper()
	for _, user := range users {
		_, err := env.profiles.AddUserProfile(context.Background(), user)
		require.NoError(t, err)
	}
}

var (
	alice = models.UserProfile{UserID: "alice", DisplayName: "Alice"}
	bob   = models.UserProfile{UserID: "bob", DisplayName: "Bob"}
	carol = models.UserProfile{UserID: "carol", DisplayName: "Carol"}
)

// openSession creates the canonical session for alice (requester) and bob
// (provider), optionally linked to a move.
func (env *testEnv) openSession(t *testing.T, moveID string) *models.Session {
	t.Helper()
	session, created, err := env.sessions.GetOrCreateSession(context.Background(), alice, bob, moveID)
	require.NoError(t, err)
	require.True(t, created)
	return session
}

// recv waits for one value from a subscription callback channel.
func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a delivery")
		var zero T
		return zero
	}
}

// expectQuiet asserts that no further value arrives on the channel.
func expectQuiet[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected delivery: %+v", v)
	case <-time.After(100 * time.Millisecond):
	}
}
