package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-auth/internal/config"
	"storefront-auth/internal/model"
	"storefront-auth/internal/sms"
)

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{
		OTPRequestMax:    3,
		OTPRequestWindow: 15 * time.Minute,
		OTPVerifyMax:     5,
		OTPVerifyWindow:  5 * time.Minute,
		OTPResendMax:     3,
		OTPResendWindow:  time.Hour,
		OTPChallengeTTL:  5 * time.Minute,
		AnomalyThreshold: 3,
		AnomalyWindow:    time.Hour,
	}
}

// ---- challenge cache ----

type fakeChallengeCache struct {
	mu      sync.Mutex
	secrets map[string]string
	fail    bool
}

func newFakeChallengeCache() *fakeChallengeCache {
	return &fakeChallengeCache{secrets: make(map[string]string)}
}

func (c *fakeChallengeCache) SetSecret(ctx context.Context, phone, secret string, ttl time.Duration) error {
	if c.fail {
		return errors.New("redis down")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secrets[phone] = secret
	return nil
}

func (c *fakeChallengeCache) GetSecret(ctx context.Context, phone string) (string, error) {
	if c.fail {
		return "", errors.New("redis down")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secrets[phone], nil
}

func (c *fakeChallengeCache) DeleteSecret(ctx context.Context, phone string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.secrets, phone)
	return nil
}

// ---- throttle store ----

type fakeThrottle struct {
	mu     sync.Mutex
	counts map[string]int64
	fail   bool
}

func newFakeThrottle() *fakeThrottle {
	return &fakeThrottle{counts: make(map[string]int64)}
}

func (t *fakeThrottle) IncrementAndCheck(ctx context.Context, key string, window time.Duration, max int64) (bool, int64, error) {
	if t.fail {
		return false, 0, errors.New("redis down")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts[key] > max {
		return false, t.counts[key], nil
	}
	t.counts[key]++
	return t.counts[key] <= max, t.counts[key], nil
}

func (t *fakeThrottle) Reset(ctx context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, key)
	return nil
}

// ---- user repository ----

type fakeUserRepo struct {
	mu      sync.Mutex
	byPhone map[string]*model.User
	nextID  int
	fail    bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byPhone: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if r.fail {
		return errors.New("scylla down")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	if user.UserID == "" {
		user.UserID = fmt.Sprintf("user-%d", r.nextID)
	}
	user.CreatedAt = time.Now().UTC()
	r.byPhone[user.Phone] = user
	return nil
}

func (r *fakeUserRepo) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	if r.fail {
		return nil, errors.New("scylla down")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byPhone[phone]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) Activate(ctx context.Context, user *model.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byPhone[user.Phone]
	if !ok {
		return false, model.ErrUserNotFound
	}
	if stored.IsActive {
		return false, nil
	}
	stored.IsActive = true
	stored.IsVerified = true
	user.IsActive = true
	user.IsVerified = true
	return true, nil
}

func (r *fakeUserRepo) UpdateLastLogin(ctx context.Context, user *model.User, ip string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.byPhone[user.Phone]; ok {
		stored.LastLoginIP = ip
		stored.LastActivity = time.Now().UTC()
	}
	return nil
}

// ---- profile repository ----

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[string]*model.Profile)}
}

func (r *fakeProfileRepo) Create(ctx context.Context, profile *model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.UserID] = profile
	return nil
}

func (r *fakeProfileRepo) GetByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile, ok := r.profiles[userID]
	if !ok {
		return nil, model.ErrProfileNotFound
	}
	return profile, nil
}

// ---- device log repository ----

type fakeDeviceLogRepo struct {
	mu   sync.Mutex
	logs []*model.DeviceLog
}

func newFakeDeviceLogRepo() *fakeDeviceLogRepo {
	return &fakeDeviceLogRepo{}
}

func (r *fakeDeviceLogRepo) Insert(ctx context.Context, log *model.DeviceLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if log.ID == "" {
		log.ID = "log-" + time.Now().Format("150405.000000000")
	}
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeDeviceLogRepo) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, log := range r.logs {
		if log.UserID == userID && log.LoggedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (r *fakeDeviceLogRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.DeviceLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.DeviceLog
	for i := len(r.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.logs[i].UserID == userID {
			out = append(out, r.logs[i])
		}
	}
	return out, nil
}

func (r *fakeDeviceLogRepo) Delete(ctx context.Context, userID, logID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, log := range r.logs {
		if log.UserID == userID && log.ID == logID {
			r.logs = append(r.logs[:i], r.logs[i+1:]...)
			return nil
		}
	}
	return model.ErrDeviceLogNotFound
}

// ---- token denylist ----

type fakeDenylist struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func newFakeDenylist() *fakeDenylist {
	return &fakeDenylist{revoked: make(map[string]bool)}
}

func (d *fakeDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ttl > 0 {
		d.revoked[jti] = true
	}
	return nil
}

func (d *fakeDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.revoked[jti], nil
}

// ---- geo resolver ----

type fakeGeoResolver struct {
	loc model.Location
}

func (g *fakeGeoResolver) Resolve(ctx context.Context, ip string) *model.Location {
	loc := g.loc
	if loc.City == "" {
		loc = model.Location{City: "Tehran", Country: "Iran"}
	}
	return &loc
}

// ---- SMS sender ----

type recordingSender struct {
	mu       sync.Mutex
	messages []string
	phones   []string
	fail     bool
}

func (s *recordingSender) Send(ctx context.Context, phone, message string) (*sms.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("gateway unreachable")
	}
	s.phones = append(s.phones, phone)
	s.messages = append(s.messages, message)
	return &sms.Result{Success: true, MessageID: "test"}, nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// ---- event sinks ----

type fakeProducer struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	fail     bool
}

func (p *fakeProducer) ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("kafka down")
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, value)
	return nil
}

type fakeSink struct {
	mu      sync.Mutex
	queries []string
	fail    bool
}

func (s *fakeSink) Exec(ctx context.Context, query string, args ...interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("clickhouse down")
	}
	s.queries = append(s.queries, query)
	return nil
}

type fakeIndexer struct {
	mu      sync.Mutex
	indexed []interface{}
	fail    bool
}

func (i *fakeIndexer) IndexJSON(ctx context.Context, index, id string, document interface{}) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.fail {
		return errors.New("elasticsearch down")
	}
	i.indexed = append(i.indexed, document)
	return nil
}
