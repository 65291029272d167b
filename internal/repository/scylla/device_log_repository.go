package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-auth/internal/model"
	"storefront-auth/internal/util"
)

// DeviceLogRepository is the append-only login audit trail. Rows cluster
// newest-first inside the user partition, which makes the trailing-window
// count and the recent-devices listing single-partition reads.
type DeviceLogRepository struct {
	client *ScyllaClient
}

func NewDeviceLogRepository(client *ScyllaClient) *DeviceLogRepository {
	return &DeviceLogRepository{client: client}
}

func (r *DeviceLogRepository) Insert(ctx context.Context, log *model.DeviceLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.LoggedAt.IsZero() {
		log.LoggedAt = time.Now().UTC()
	}

	query := r.client.Prepared.CreateDeviceLog.
		Bind(log.UserID, log.LoggedAt, log.ID, log.IP, log.UserAgent, log.City, log.Country).
		WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 3); err != nil {
		util.Error("Failed to insert device log",
			zap.String("user_id", log.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to insert device log: %w", err)
	}

	return nil
}

// CountSince counts logins inside the trailing window, not including the
// login being processed. Callers count before inserting.
func (r *DeviceLogRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int

	query := r.client.Session.Query(`
        SELECT COUNT(*) FROM device_logs WHERE user_id = ? AND logged_at > ?`,
		userID, since).WithContext(ctx)

	if err := r.client.ScanWithRetry(query, &count); err != nil {
		util.Error("Failed to count device logs",
			zap.String("user_id", userID),
			zap.Error(err))
		return 0, fmt.Errorf("failed to count device logs: %w", err)
	}

	return count, nil
}

func (r *DeviceLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.DeviceLog, error) {
	var logs []*model.DeviceLog

	iter := r.client.Prepared.ListDeviceLogs.Bind(userID, limit).WithContext(ctx).Iter()

	for {
		log := &model.DeviceLog{}
		if !iter.Scan(&log.UserID, &log.LoggedAt, &log.ID, &log.IP,
			&log.UserAgent, &log.City, &log.Country) {
			break
		}
		logs = append(logs, log)
	}

	if err := iter.Close(); err != nil {
		util.Error("Failed to list device logs",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list device logs: %w", err)
	}

	return logs, nil
}

// Delete removes one audit row. The clustering key includes logged_at, so
// the row's timestamp is looked up by id first within the user partition.
func (r *DeviceLogRepository) Delete(ctx context.Context, userID, logID string) error {
	var loggedAt time.Time

	lookup := r.client.Session.Query(`
        SELECT logged_at FROM device_logs
        WHERE user_id = ? AND id = ? ALLOW FILTERING`,
		userID, logID).WithContext(ctx)

	if err := lookup.Scan(&loggedAt); err != nil {
		if err == gocql.ErrNotFound {
			return model.ErrDeviceLogNotFound
		}
		return fmt.Errorf("failed to find device log: %w", err)
	}

	del := r.client.Session.Query(`
        DELETE FROM device_logs WHERE user_id = ? AND logged_at = ? AND id = ?`,
		userID, loggedAt, logID).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(del, 3); err != nil {
		util.Error("Failed to delete device log",
			zap.String("user_id", userID),
			zap.String("log_id", logID),
			zap.Error(err))
		return fmt.Errorf("failed to delete device log: %w", err)
	}

	util.Info("Device log deleted",
		zap.String("user_id", userID),
		zap.String("log_id", logID))

	return nil
}
