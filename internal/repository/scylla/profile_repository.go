package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"storefront-auth/internal/model"
	"storefront-auth/internal/util"
)

// ProfileRepository stores the storefront preferences row created
// alongside every new account.
type ProfileRepository struct {
	client *ScyllaClient
}

func NewProfileRepository(client *ScyllaClient) *ProfileRepository {
	return &ProfileRepository{client: client}
}

func (r *ProfileRepository) Create(ctx context.Context, profile *model.Profile) error {
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	if profile.PreferredLanguage == "" {
		profile.PreferredLanguage = "fa"
	}

	query := r.client.Prepared.CreateProfile.
		Bind(profile.UserID, profile.SMSMarketingOptin, profile.SMSOrderUpdates,
			profile.SMSNewsletter, profile.BirthDate, profile.LoyaltyPoints,
			profile.PreferredLanguage, profile.CreatedAt, profile.UpdatedAt).
		WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 3); err != nil {
		util.Error("Failed to create profile",
			zap.String("user_id", profile.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create profile: %w", err)
	}

	util.Debug("Profile created", zap.String("user_id", profile.UserID))
	return nil
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	profile := &model.Profile{}

	query := r.client.Prepared.GetProfile.Bind(userID).WithContext(ctx)
	err := r.client.ScanWithRetry(query,
		&profile.UserID, &profile.SMSMarketingOptin, &profile.SMSOrderUpdates,
		&profile.SMSNewsletter, &profile.BirthDate, &profile.LoyaltyPoints,
		&profile.PreferredLanguage, &profile.CreatedAt, &profile.UpdatedAt)

	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, model.ErrProfileNotFound
		}
		util.Error("Failed to get profile",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}
