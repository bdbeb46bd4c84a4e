package models

// Match request statuses. accepted and rejected are terminal: the record is
// immutable afterwards.
const (
	MatchRequestPending  = "pending"
	MatchRequestAccepted = "accepted"
	MatchRequestRejected = "rejected"
)

// MatchRequest is a one-directional partner proposal.
type MatchRequest struct {
	RequestID   string `dynamodbav:"requestId" json:"requestId"`
	FromID      string `dynamodbav:"fromId" json:"fromId"`
	ToID        string `dynamodbav:"toId" json:"toId"` // GSI partition key
	Status      string `dynamodbav:"status" json:"status"`
	CreatedAt   string `dynamodbav:"createdAt" json:"createdAt"`
	RespondedAt string `dynamodbav:"respondedAt,omitempty" json:"respondedAt,omitempty"`
}

// MatchRequestsTable is the DynamoDB table name for match requests
const MatchRequestsTable = "MatchRequests"

// ToIDIndex is the GSI used to list a user's incoming requests
const ToIDIndex = "toId-index"
