package models

// Message is immutable once created: no edits, no deletes, append-only.
// CreatedAt doubles as the sort key, so replay order is the store order.
type Message struct {
	SessionID  string `dynamodbav:"sessionId" json:"sessionId"`
	CreatedAt  string `dynamodbav:"createdAt" json:"createdAt"`
	MessageID  string `dynamodbav:"messageId" json:"messageId"`
	SenderID   string `dynamodbav:"senderId" json:"senderId"`
	SenderName string `dynamodbav:"senderName,omitempty" json:"senderName,omitempty"`
	Content    string `dynamodbav:"content" json:"content"`
}

// MessagesTable is the DynamoDB table name for session messages
const MessagesTable = "Messages"
