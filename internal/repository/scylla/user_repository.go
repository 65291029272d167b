package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-auth/internal/bucketing"
	"storefront-auth/internal/model"
	"storefront-auth/internal/util"
)

type UserRepository struct {
	client    *ScyllaClient
	bucketing *bucketing.BucketingManager
}

func NewUserRepository(client *ScyllaClient, bm *bucketing.BucketingManager) *UserRepository {
	return &UserRepository{
		client:    client,
		bucketing: bm,
	}
}

// Create writes the user row and the phone_to_user lookup row in one
// logged batch so a phone never points at a missing user.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	user.UserBucket = r.bucketing.PhoneBucket(user.Phone)

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.LastActivity = now

	batch := r.client.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)

	batch.Query(r.client.Prepared.CreateUser.Statement(),
		user.UserBucket, user.UserID, user.Phone, user.IsVerified, user.IsActive,
		user.AllowSMS, user.TermsAccepted, user.SignupIP, user.LastLoginIP,
		user.LastActivity, user.CreatedAt, user.UpdatedAt)

	batch.Query(r.client.Prepared.CreatePhoneToUser.Statement(),
		user.Phone, user.UserBucket, user.UserID, user.CreatedAt)

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to create user",
			zap.String("phone", util.MaskPhone(user.Phone)),
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	util.Info("User created",
		zap.String("phone", util.MaskPhone(user.Phone)),
		zap.String("user_id", user.UserID),
		zap.Int("user_bucket", user.UserBucket))

	return nil
}

// GetByPhone resolves the phone through the lookup table first, then
// reads the user row from its bucket partition.
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	var userBucket int
	var userID string

	lookup := r.client.Prepared.GetUserByPhone.Bind(phone).WithContext(ctx)
	if err := r.client.ScanWithRetry(lookup, &userBucket, &userID); err != nil {
		if err == gocql.ErrNotFound {
			return nil, model.ErrUserNotFound
		}
		util.Error("Failed to resolve phone to user",
			zap.String("phone", util.MaskPhone(phone)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user by phone: %w", err)
	}

	return r.getByKey(ctx, userBucket, userID)
}

func (r *UserRepository) getByKey(ctx context.Context, userBucket int, userID string) (*model.User, error) {
	user := &model.User{}

	query := r.client.Prepared.GetUserByID.Bind(userBucket, userID).WithContext(ctx)
	err := r.client.ScanWithRetry(query,
		&user.UserBucket, &user.UserID, &user.Phone, &user.IsVerified, &user.IsActive,
		&user.AllowSMS, &user.TermsAccepted, &user.SignupIP, &user.LastLoginIP,
		&user.LastActivity, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, model.ErrUserNotFound
		}
		util.Error("Failed to get user",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Activate flips the account to verified and active. The conditional
// update means only the first caller observes applied = true; callers
// use that to gate one-time side effects like the welcome message.
func (r *UserRepository) Activate(ctx context.Context, user *model.User) (bool, error) {
	now := time.Now().UTC()

	query := r.client.Prepared.ActivateUser.
		Bind(now, user.UserBucket, user.UserID).
		WithContext(ctx)

	var prevActive bool
	applied, err := query.ScanCAS(&prevActive)
	if err != nil {
		util.Error("Failed to activate user",
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return false, fmt.Errorf("failed to activate user: %w", err)
	}

	user.IsVerified = true
	user.IsActive = true
	user.UpdatedAt = now

	if applied {
		util.Info("User activated",
			zap.String("user_id", user.UserID),
			zap.String("phone", util.MaskPhone(user.Phone)))
	}

	return applied, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, user *model.User, ip string) error {
	now := time.Now().UTC()

	query := r.client.Prepared.UpdateLastLogin.
		Bind(ip, now, now, user.UserBucket, user.UserID).
		WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 3); err != nil {
		util.Error("Failed to update last login",
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to update last login: %w", err)
	}

	user.LastLoginIP = ip
	user.LastActivity = now
	user.UpdatedAt = now

	return nil
}
