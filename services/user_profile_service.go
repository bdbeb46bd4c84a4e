package services

import (
	"context"
	"fmt"

	apperrors "moveflow_server/errors"
	"moveflow_server/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// UserProfileService is the profile-store collaborator. The coordinator
// only needs GetUserProfile to denormalize names at session creation; the
// CRUD surface exists for the HTTP layer.
type UserProfileService struct {
	Store DocumentStore
}

// AddUserProfile creates or replaces a user profile.
func (ups *UserProfileService) AddUserProfile(ctx context.Context, profile models.UserProfile) (*models.UserProfile, error) {
	if profile.UserID == "" {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "userId must be non-empty")
	}
	if err := ups.Store.PutItem(ctx, models.UserProfilesTable, profile); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to store profile", err)
	}
	return &profile, nil
}

// GetUserProfile retrieves a user profile by ID
func (ups *UserProfileService) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	key := map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	}

	item, err := ups.Store.GetItem(ctx, models.UserProfilesTable, key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to load profile", err)
	}
	if item == nil {
		return nil, apperrors.New(apperrors.KindNotFound, fmt.Sprintf("profile %s does not exist", userID))
	}

	var profile models.UserProfile
	if err := attributevalue.UnmarshalMap(item, &profile); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to parse profile", err)
	}
	return &profile, nil
}

// DeleteUserProfile removes a user profile
func (ups *UserProfileService) DeleteUserProfile(ctx context.Context, userID string) error {
	key := map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	}
	if err := ups.Store.DeleteItem(ctx, models.UserProfilesTable, key); err != nil {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, "failed to delete profile", err)
	}
	return nil
}
