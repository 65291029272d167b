package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront-auth/internal/model"
	"storefront-auth/internal/util"
)

// messageProducer is the slice of the Kafka client the publisher needs.
type messageProducer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// analyticsSink is the slice of the ClickHouse client the publisher needs.
type analyticsSink interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
}

const insertLoginEventQuery = `
    INSERT INTO login_events (user_id, phone, ip, user_agent, city, country, logged_at)
    VALUES (?, ?, ?, ?, ?, ?, ?)`

// EventPublisher fans successful logins out to the Kafka stream and the
// ClickHouse analytics table. Both writes are best effort; a login never
// fails because an event sink is down.
type EventPublisher struct {
	producer   messageProducer
	analytics  analyticsSink
	loginTopic string
	timeout    time.Duration
}

func NewEventPublisher(producer messageProducer, analytics analyticsSink, loginTopic string) *EventPublisher {
	return &EventPublisher{
		producer:   producer,
		analytics:  analytics,
		loginTopic: loginTopic,
		timeout:    5 * time.Second,
	}
}

func (p *EventPublisher) PublishLogin(ctx context.Context, event *model.LoginEvent) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// One sink failing must not cancel the other, so no shared cancel.
	var g errgroup.Group

	g.Go(func() error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return p.producer.ProduceMessage(ctx, p.loginTopic,
			[]byte(event.UserID), payload,
			map[string]string{"event_type": "login"})
	})

	g.Go(func() error {
		return p.analytics.Exec(ctx, insertLoginEventQuery,
			event.UserID, event.Phone, event.IP, event.UserAgent,
			event.City, event.Country, event.LoggedAt)
	})

	if err := g.Wait(); err != nil {
		util.Warn("Login event fan-out incomplete",
			zap.String("user_id", event.UserID),
			zap.Error(err))
	}
}
