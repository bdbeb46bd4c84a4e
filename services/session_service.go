package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "moveflow_server/errors"
	"moveflow_server/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// messageReplayPage bounds one query of the replay loop. Variable so tests
// can force multi-page replays with small logs.
var messageReplayPage = int32(500)

// SessionService owns session documents and their append-only message log.
// All writes to one session funnel through a per-session mutex, so the
// message append and its summary update land as one observable unit and
// hub publishes follow store write order.
type SessionService struct {
	Store DocumentStore
	Hub   *SessionHub

	// locks maps sessionID -> *sync.Mutex. Entries are never evicted: one
	// mutex lives for every session this process has touched, until the
	// process exits. Eviction would race with lock holders, and a mutex is
	// a few words, so the set is left to grow with the working set.
	locks sync.Map
}

func (s *SessionService) lockFor(sessionID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// GetOrCreateSession returns the session for the pair, creating it when
// absent. Creation is idempotent and race-safe: a concurrent loser of the
// conditional put reads back the winner's document instead of duplicating.
func (s *SessionService) GetOrCreateSession(ctx context.Context, requester, provider models.UserProfile, moveID string) (*models.Session, bool, error) {
	sessionID, err := SessionKeyFor(requester.UserID, provider.UserID)
	if err != nil {
		return nil, false, err
	}

	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.getSession(ctx, sessionID)
	if err != nil && !apperrors.IsKind(err, apperrors.KindNotFound) {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	participants := []string{requester.UserID, provider.UserID}
	sort.Strings(participants)

	session := models.Session{
		SessionID:           sessionID,
		ParticipantIDs:      participants,
		RequesterID:         requester.UserID,
		RequesterName:       requester.DisplayName,
		ProviderID:          provider.UserID,
		ProviderName:        provider.DisplayName,
		MoveID:              moveID,
		LastMessageText:     models.PlaceholderLastMessage,
		LastMessageSenderID: "",
		LastUpdatedAt:       now,
		CreatedAt:           now,
	}

	created, err := s.Store.PutItemIfAbsent(ctx, models.SessionsTable, session, "sessionId")
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to create session", err)
	}
	if !created {
		// Lost the race to a writer in another process; their document wins.
		winner, err := s.getSession(ctx, sessionID)
		if err != nil {
			return nil, false, err
		}
		return winner, false, nil
	}

	log.Printf("🆕 Session %s created for %s and %s", sessionID, requester.UserID, provider.UserID)
	s.Hub.PublishSession(session)
	return &session, true, nil
}

// GetSession fetches a session document by id.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.getSession(ctx, sessionID)
}

func (s *SessionService) getSession(ctx context.Context, sessionID string) (*models.Session, error) {
	key := map[string]types.AttributeValue{
		"sessionId": &types.AttributeValueMemberS{Value: sessionID},
	}

	item, err := s.Store.GetItem(ctx, models.SessionsTable, key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to load session", err)
	}
	if item == nil {
		return nil, apperrors.New(apperrors.KindNotFound, fmt.Sprintf("session %s does not exist", sessionID))
	}

	var session models.Session
	if err := attributevalue.UnmarshalMap(item, &session); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to parse session", err)
	}
	return &session, nil
}

// AppendMessage adds a message to the session's log and refreshes the
// denormalized summary. The message is written first, so no observer can
// see a summary referencing a message not yet in the log; the per-session
// lock keeps concurrent appends from reordering between log and summary.
func (s *SessionService) AppendMessage(ctx context.Context, sessionID string, message models.Message) error {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.getSession(ctx, sessionID); err != nil {
		return err
	}

	message.SessionID = sessionID
	if err := s.Store.PutItem(ctx, models.MessagesTable, message); err != nil {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to store message", err)
	}

	updated, err := s.applyUpdate(ctx, sessionID, map[string]interface{}{
		"lastMessageText":     message.Content,
		"lastMessageSenderId": message.SenderID,
		"lastUpdatedAt":       message.CreatedAt,
	}, nil, "attribute_exists(sessionId)", nil, nil)
	if err != nil {
		return err
	}

	s.Hub.PublishMessages(sessionID, message)
	s.Hub.PublishSession(*updated)
	return nil
}

// ListMessages returns the session's messages in append order, oldest
// first, up to limit.
func (s *SessionService) ListMessages(ctx context.Context, sessionID string, limit int32) ([]models.Message, error) {
	return s.listMessagesAfter(ctx, sessionID, "", limit)
}

// listMessagesAfter queries one page of the log, oldest first, strictly
// after the given sort key. An empty cursor starts at the beginning.
func (s *SessionService) listMessagesAfter(ctx context.Context, sessionID, afterCreatedAt string, limit int32) ([]models.Message, error) {
	keyCondition := "#sessionId = :sessionId"
	expressionValues := map[string]types.AttributeValue{
		":sessionId": &types.AttributeValueMemberS{Value: sessionID},
	}
	expressionNames := map[string]string{
		"#sessionId": "sessionId",
	}
	if afterCreatedAt != "" {
		keyCondition += " AND #createdAt > :after"
		expressionValues[":after"] = &types.AttributeValueMemberS{Value: afterCreatedAt}
		expressionNames["#createdAt"] = "createdAt"
	}

	items, err := s.Store.QueryItems(ctx, models.MessagesTable, keyCondition, expressionValues, expressionNames, limit, true)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to fetch messages", err)
	}

	var messages []models.Message
	if err := attributevalue.UnmarshalListOfMaps(items, &messages); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to parse messages", err)
	}
	return messages, nil
}

// UpdateSessionFields applies a partial update to the session document.
func (s *SessionService) UpdateSessionFields(ctx context.Context, sessionID string, fields map[string]interface{}) (*models.Session, error) {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	updated, err := s.applyUpdate(ctx, sessionID, fields, nil, "attribute_exists(sessionId)", nil, nil)
	if err != nil {
		return nil, err
	}

	s.Hub.PublishSession(*updated)
	return updated, nil
}

// applyUpdate builds and runs a guarded partial update and returns the
// updated document. ErrConditionFailed from an extra guard passes through
// untranslated so callers can decide what the failed guard means; a bare
// existence guard failure is reported as not-found. Callers hold the
// session lock.
func (s *SessionService) applyUpdate(
	ctx context.Context,
	sessionID string,
	set map[string]interface{},
	remove []string,
	condition string,
	conditionValues map[string]types.AttributeValue,
	conditionNames map[string]string,
) (*models.Session, error) {
	if len(set) == 0 && len(remove) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "no fields to update")
	}

	expressionValues := map[string]types.AttributeValue{}
	expressionNames := map[string]string{}

	// Deterministic expression order keeps logs and fakes stable.
	fields := make([]string, 0, len(set))
	for field := range set {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var setParts []string
	for _, field := range fields {
		value, err := attributevalue.Marshal(set[field])
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindInvalidArgument, "unsupported field value", err)
		}
		expressionNames["#"+field] = field
		expressionValues[":"+field] = value
		setParts = append(setParts, fmt.Sprintf("#%s = :%s", field, field))
	}

	var exprParts []string
	if len(setParts) > 0 {
		exprParts = append(exprParts, "SET "+strings.Join(setParts, ", "))
	}
	if len(remove) > 0 {
		var removeParts []string
		for _, field := range remove {
			expressionNames["#"+field] = field
			removeParts = append(removeParts, "#"+field)
		}
		exprParts = append(exprParts, "REMOVE "+strings.Join(removeParts, ", "))
	}

	for name, value := range conditionValues {
		expressionValues[name] = value
	}
	for name, attr := range conditionNames {
		expressionNames[name] = attr
	}

	key := map[string]types.AttributeValue{
		"sessionId": &types.AttributeValueMemberS{Value: sessionID},
	}

	item, err := s.Store.UpdateItem(ctx, models.SessionsTable, strings.Join(exprParts, " "), condition, key, expressionValues, expressionNames)
	if err != nil {
		if err == ErrConditionFailed && condition == "attribute_exists(sessionId)" {
			return nil, apperrors.New(apperrors.KindNotFound, fmt.Sprintf("session %s does not exist", sessionID))
		}
		if err == ErrConditionFailed {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to update session", err)
	}

	var session models.Session
	if err := attributevalue.UnmarshalMap(item, &session); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to parse session", err)
	}
	return &session, nil
}

// SubscribeToSession registers a continuous listener for the session
// document: it receives the current state immediately and a fresh snapshot
// after every mutation, until the handle is canceled.
func (s *SessionService) SubscribeToSession(ctx context.Context, sessionID string, onChange func(models.Session)) (*Subscription, error) {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Seeded under the session lock: nothing published later can outrun
	// the initial snapshot.
	sub := s.Hub.attach(sessionID, onChange, nil)
	sub.enqueue(sessionEvent{session: session})
	return sub, nil
}

// SubscribeToMessages registers an ordered append listener: the existing
// log is replayed once, then only newly appended messages are delivered,
// each exactly once, in store write order.
func (s *SessionService) SubscribeToMessages(ctx context.Context, sessionID string, onAppend func([]models.Message)) (*Subscription, error) {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}

	// The whole log is replayed, paged on the sort key so long sessions do
	// not lose their oldest history to a single-query cap.
	var replay []models.Message
	after := ""
	for {
		page, err := s.listMessagesAfter(ctx, sessionID, after, messageReplayPage)
		if err != nil {
			return nil, err
		}
		replay = append(replay, page...)
		if int32(len(page)) < messageReplayPage {
			break
		}
		after = page[len(page)-1].CreatedAt
	}

	sub := s.Hub.attach(sessionID, nil, onAppend)
	if len(replay) > 0 {
		sub.enqueue(sessionEvent{messages: replay})
	}
	return sub, nil
}
