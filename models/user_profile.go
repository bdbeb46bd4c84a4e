package models

// UserProfile defines the structure for user profiles
type UserProfile struct {
	UserID      string `dynamodbav:"userId" json:"userId"`
	DisplayName string `dynamodbav:"displayName,omitempty" json:"displayName,omitempty"`
	PhotoURL    string `dynamodbav:"photoUrl,omitempty" json:"photoUrl,omitempty"`
	Bio         string `dynamodbav:"bio,omitempty" json:"bio,omitempty"`
	City        string `dynamodbav:"city,omitempty" json:"city,omitempty"`
}

// UserProfilesTable is the DynamoDB table name for user profiles
const UserProfilesTable = "UserProfiles"
