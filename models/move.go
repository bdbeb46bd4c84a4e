package models

// Move statuses. CONFIRMED is written only by the confirmation handshake;
// CANCELED and COMPLETED come from external calls.
const (
	MoveStatusOpen      = "OPEN"
	MoveStatusConfirmed = "CONFIRMED"
	MoveStatusCanceled  = "CANCELED"
	MoveStatusCompleted = "COMPLETED"
)

// Move is the transaction record a session's confirmation handshake
// finalizes.
type Move struct {
	MoveID      string `dynamodbav:"moveId" json:"moveId"`
	RequesterID string `dynamodbav:"requesterId" json:"requesterId"`
	ProviderID  string `dynamodbav:"providerId" json:"providerId"`
	SessionID   string `dynamodbav:"sessionId,omitempty" json:"sessionId,omitempty"`
	Status      string `dynamodbav:"status" json:"status"`
	CreatedAt   string `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt   string `dynamodbav:"updatedAt" json:"updatedAt"`
}

// IsTerminalMoveStatus reports whether a move can transition any further.
func IsTerminalMoveStatus(status string) bool {
	return status == MoveStatusCanceled || status == MoveStatusCompleted
}

// MovesTable is the DynamoDB table name for move records
const MovesTable = "Moves"
