package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-auth/internal/model"
	"storefront-auth/internal/util"
)

// alertIndexer is the slice of the Elasticsearch client the notifier needs.
type alertIndexer interface {
	IndexJSON(ctx context.Context, index, id string, document interface{}) error
}

type anomalyJob struct {
	userID     string
	phone      string
	ip         string
	userAgent  string
	loginCount int
}

// AnomalyNotifier turns suspicious login bursts into security alerts.
// Jobs queue on a channel and a single worker drains them; every failure
// inside the worker is swallowed and logged so the login path never
// blocks on alerting.
type AnomalyNotifier struct {
	users      model.UserRepository
	producer   messageProducer
	indexer    alertIndexer
	alertTopic string
	alertIndex string

	jobs     chan anomalyJob
	stopOnce sync.Once
	done     chan struct{}

	retries int
	sleep   func(time.Duration)
	backoff time.Duration
}

func NewAnomalyNotifier(
	users model.UserRepository,
	producer messageProducer,
	indexer alertIndexer,
	alertTopic, alertIndex string,
) *AnomalyNotifier {
	return &AnomalyNotifier{
		users:      users,
		producer:   producer,
		indexer:    indexer,
		alertTopic: alertTopic,
		alertIndex: alertIndex,
		jobs:       make(chan anomalyJob, 128),
		done:       make(chan struct{}),
		retries:    3,
		sleep:      time.Sleep,
		backoff:    60 * time.Second,
	}
}

func (n *AnomalyNotifier) Start() {
	go n.worker()
}

func (n *AnomalyNotifier) Stop() {
	n.stopOnce.Do(func() {
		close(n.jobs)
		<-n.done
	})
}

// Notify enqueues one alert job. A full queue drops the job with a log
// line rather than blocking the login.
func (n *AnomalyNotifier) Notify(userID, phone, ip, userAgent string, loginCount int) {
	job := anomalyJob{
		userID:     userID,
		phone:      phone,
		ip:         ip,
		userAgent:  userAgent,
		loginCount: loginCount,
	}

	select {
	case n.jobs <- job:
	default:
		util.Warn("Anomaly queue full, dropping alert",
			zap.String("user_id", userID))
	}
}

func (n *AnomalyNotifier) worker() {
	defer close(n.done)

	for job := range n.jobs {
		if err := n.process(job); err != nil {
			util.Error("Failed to publish security alert",
				zap.String("user_id", job.userID),
				zap.Error(err))
		}
	}
}

func (n *AnomalyNotifier) process(job anomalyJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Refetch the user so the alert carries current account state; a
	// replicating write may not be visible yet, hence the retries.
	user, err := n.fetchUser(ctx, job.phone)
	if err != nil {
		return fmt.Errorf("user lookup: %w", err)
	}

	alert := &model.SecurityAlert{
		UserID:     user.UserID,
		Phone:      user.Phone,
		IP:         job.ip,
		UserAgent:  job.userAgent,
		LoginCount: job.loginCount,
		DetectedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	if err := n.producer.ProduceMessage(ctx, n.alertTopic,
		[]byte(alert.UserID), payload,
		map[string]string{"event_type": "security_alert"}); err != nil {
		util.Warn("Alert Kafka publish failed",
			zap.String("user_id", alert.UserID),
			zap.Error(err))
	}

	if err := n.indexer.IndexJSON(ctx, n.alertIndex, uuid.New().String(), alert); err != nil {
		util.Warn("Alert indexing failed",
			zap.String("user_id", alert.UserID),
			zap.Error(err))
	}

	util.Info("Security alert published",
		zap.String("user_id", alert.UserID),
		zap.Int("login_count", alert.LoginCount))

	return nil
}

func (n *AnomalyNotifier) fetchUser(ctx context.Context, phone string) (*model.User, error) {
	var lastErr error
	for attempt := 0; attempt < n.retries; attempt++ {
		if attempt > 0 {
			n.sleep(n.backoff)
		}
		user, err := n.users.GetByPhone(ctx, phone)
		if err == nil {
			return user, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
