package models

// Session is the coordination channel between exactly two participants.
// Its id is derived from the sorted participant pair, so exactly one
// document exists per unordered pair.
type Session struct {
	SessionID      string   `dynamodbav:"sessionId" json:"sessionId"`
	ParticipantIDs []string `dynamodbav:"participantIds" json:"participantIds"`

	// Roles are fixed at creation and never swapped: the requester opened
	// the move, the provider serves it.
	RequesterID   string `dynamodbav:"requesterId" json:"requesterId"`
	RequesterName string `dynamodbav:"requesterName" json:"requesterName"`
	ProviderID    string `dynamodbav:"providerId" json:"providerId"`
	ProviderName  string `dynamodbav:"providerName" json:"providerName"`

	// MoveID links the session to at most one open move record.
	MoveID string `dynamodbav:"moveId,omitempty" json:"moveId,omitempty"`

	// Denormalized summary of the most recent message, written together
	// with every append.
	LastMessageText     string `dynamodbav:"lastMessageText" json:"lastMessageText"`
	LastMessageSenderID string `dynamodbav:"lastMessageSenderId" json:"lastMessageSenderId"`
	LastUpdatedAt       string `dynamodbav:"lastUpdatedAt" json:"lastUpdatedAt"`

	ProviderConfirmed    bool   `dynamodbav:"providerConfirmed" json:"providerConfirmed"`
	ProviderConfirmedAt  string `dynamodbav:"providerConfirmedAt,omitempty" json:"providerConfirmedAt,omitempty"`
	RequesterConfirmed   bool   `dynamodbav:"requesterConfirmed" json:"requesterConfirmed"`
	RequesterConfirmedAt string `dynamodbav:"requesterConfirmedAt,omitempty" json:"requesterConfirmedAt,omitempty"`

	CreatedAt string `dynamodbav:"createdAt" json:"createdAt"`
}

// HasParticipant reports whether the given id holds one of the two roles.
func (s Session) HasParticipant(id string) bool {
	return id != "" && (id == s.RequesterID || id == s.ProviderID)
}

// SessionsTable is the DynamoDB table name for session documents
const SessionsTable = "Sessions"

// PlaceholderLastMessage seeds the summary of a freshly created session
// before any real message exists.
const PlaceholderLastMessage = "Say hi and get the move rolling!"
