package scylla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"storefront-auth/internal/config"
	"storefront-auth/internal/util"
)

// PreparedStatements holds the statements the repositories actually use
type PreparedStatements struct {
	CreateUser        *gocql.Query
	CreatePhoneToUser *gocql.Query
	GetUserByPhone    *gocql.Query
	GetUserByID       *gocql.Query
	ActivateUser      *gocql.Query
	UpdateLastLogin   *gocql.Query

	CreateProfile *gocql.Query
	GetProfile    *gocql.Query

	CreateDeviceLog *gocql.Query
	ListDeviceLogs  *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.RWMutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.MaxPreparedStmts = 1000
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if !cfg.IsDevelopment() {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 "/root/certs/ca.pem",
			CertPath:               "/root/certs/server.pem",
			KeyPath:                "/root/certs/server.key",
			EnableHostVerification: true,
		}
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized with prepared statements",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.CreateUser = s.Session.Query(`
        INSERT INTO users (
            user_bucket, user_id, phone, is_verified, is_active, allow_sms,
            terms_accepted, signup_ip, last_login_ip, last_activity,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.CreatePhoneToUser = s.Session.Query(`
        INSERT INTO phone_to_user (phone, user_bucket, user_id, created_at)
        VALUES (?, ?, ?, ?)`)

	prepared.GetUserByPhone = s.Session.Query(`
        SELECT user_bucket, user_id FROM phone_to_user WHERE phone = ?`)

	prepared.GetUserByID = s.Session.Query(`
        SELECT user_bucket, user_id, phone, is_verified, is_active, allow_sms,
            terms_accepted, signup_ip, last_login_ip, last_activity,
            created_at, updated_at
        FROM users WHERE user_bucket = ? AND user_id = ?`)

	// Lightweight transaction: the IF clause makes activation first-wins.
	prepared.ActivateUser = s.Session.Query(`
        UPDATE users SET is_verified = true, is_active = true, updated_at = ?
        WHERE user_bucket = ? AND user_id = ? IF is_active = false`)

	prepared.UpdateLastLogin = s.Session.Query(`
        UPDATE users SET last_login_ip = ?, last_activity = ?, updated_at = ?
        WHERE user_bucket = ? AND user_id = ?`)

	prepared.CreateProfile = s.Session.Query(`
        INSERT INTO profiles (
            user_id, sms_marketing_optin, sms_order_updates, sms_newsletter,
            birth_date, loyalty_points, preferred_language, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.GetProfile = s.Session.Query(`
        SELECT user_id, sms_marketing_optin, sms_order_updates, sms_newsletter,
            birth_date, loyalty_points, preferred_language, created_at, updated_at
        FROM profiles WHERE user_id = ?`)

	prepared.CreateDeviceLog = s.Session.Query(`
        INSERT INTO device_logs (user_id, logged_at, id, ip, user_agent, city, country)
        VALUES (?, ?, ?, ?, ?, ?, ?)`)

	prepared.ListDeviceLogs = s.Session.Query(`
        SELECT user_id, logged_at, id, ip, user_agent, city, country
        FROM device_logs WHERE user_id = ? LIMIT ?`)

	s.Prepared = prepared
	s.isPrepared = true

	util.Info("ScyllaDB prepared statements created")
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Query(stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

func (s *ScyllaClient) ExecuteBatch(batch *gocql.Batch) error {
	return s.Session.ExecuteBatch(batch)
}

func (s *ScyllaClient) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}

func (s *ScyllaClient) ExecuteWithRetry(query *gocql.Query, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := query.Exec(); err != nil {
			lastErr = err
			if i < maxRetries {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}

func (s *ScyllaClient) ScanWithRetry(query *gocql.Query, dest ...interface{}) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if err := query.Scan(dest...); err != nil {
			lastErr = err
			if i < 2 {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}
