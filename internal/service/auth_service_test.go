package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-auth/internal/model"
	"storefront-auth/internal/sms"
	"storefront-auth/internal/token"
)

type authFixture struct {
	svc        *AuthService
	otp        *otpFixture
	users      *fakeUserRepo
	profiles   *fakeProfileRepo
	deviceLogs *fakeDeviceLogRepo
	denylist   *fakeDenylist
	sender     *recordingSender
	producer   *fakeProducer
	sink       *fakeSink
	indexer    *fakeIndexer
	tokens     *token.Manager
	anomalies  *AnomalyNotifier
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	otp := newOTPFixture()
	profiles := newFakeProfileRepo()
	deviceLogs := newFakeDeviceLogRepo()
	denylist := newFakeDenylist()
	producer := &fakeProducer{}
	sink := &fakeSink{}
	indexer := &fakeIndexer{}

	tokens := token.NewManager([]byte("test-secret"), "storefront-auth", 15*time.Minute, 7*24*time.Hour)

	anomalies := NewAnomalyNotifier(otp.users, producer, indexer, "auth.security-alerts", "security-alerts")
	anomalies.sleep = func(time.Duration) {}
	anomalies.Start()
	t.Cleanup(anomalies.Stop)

	svc := NewAuthService(
		otp.users, profiles, deviceLogs,
		otp.svc, tokens, denylist,
		&fakeGeoResolver{}, sms.NewGateway(otp.sender),
		NewEventPublisher(producer, sink, "auth.login-events"),
		anomalies, testLimits(),
	)

	return &authFixture{
		svc:        svc,
		otp:        otp,
		users:      otp.users,
		profiles:   profiles,
		deviceLogs: deviceLogs,
		denylist:   denylist,
		sender:     otp.sender,
		producer:   producer,
		sink:       sink,
		indexer:    indexer,
		tokens:     tokens,
		anomalies:  anomalies,
	}
}

func (f *authFixture) signupAndLogin(t *testing.T, phone string) *model.TokenPair {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.svc.SignUp(ctx, phone, "5.160.1.1"))
	code := f.otp.currentCode(t, phone)

	pair, err := f.svc.Login(ctx, phone, code, "5.160.1.1", "test-agent")
	require.NoError(t, err)
	return pair
}

func TestSignUpCreatesUserAndProfile(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SignUp(ctx, "09123456789", "5.160.1.1"))

	user, err := f.users.GetByPhone(ctx, "09123456789")
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.False(t, user.IsVerified)
	assert.True(t, user.AllowSMS)
	assert.Equal(t, "5.160.1.1", user.SignupIP)

	_, err = f.profiles.GetByUserID(ctx, user.UserID)
	assert.NoError(t, err)

	assert.Equal(t, 1, f.sender.count(), "signup sends the first challenge")
}

func TestSignUpActiveDuplicate(t *testing.T) {
	f := newAuthFixture(t)
	f.signupAndLogin(t, "09123456789")

	err := f.svc.SignUp(context.Background(), "09123456789", "5.160.1.1")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestSignUpInactiveDuplicateReissuesChallenge(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SignUp(ctx, "09123456789", "5.160.1.1"))
	require.NoError(t, f.svc.SignUp(ctx, "09123456789", "5.160.1.1"))

	users := 0
	for range f.users.byPhone {
		users++
	}
	assert.Equal(t, 1, users, "no second account row")
	assert.Equal(t, 2, f.sender.count())
}

func TestLoginActivatesOnceAndSendsWelcome(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	pair := f.signupAndLogin(t, "09123456789")
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	user, err := f.users.GetByPhone(ctx, "09123456789")
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.True(t, user.IsVerified)

	// signup OTP + welcome
	messages := f.sender.messages
	require.Len(t, messages, 2)
	assert.Contains(t, messages[1], "خوش آمدید")

	// Second login: new OTP but no second welcome.
	require.NoError(t, f.otp.svc.RequestChallenge(ctx, "09123456789"))
	code := f.otp.currentCode(t, "09123456789")
	_, err = f.svc.Login(ctx, "09123456789", code, "5.160.1.1", "test-agent")
	require.NoError(t, err)

	welcomes := 0
	for _, m := range f.sender.messages {
		if m == messages[1] {
			welcomes++
		}
	}
	assert.Equal(t, 1, welcomes, "welcome goes out exactly once")
}

func TestLoginWrongCode(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SignUp(ctx, "09123456789", "5.160.1.1"))

	_, err := f.svc.Login(ctx, "09123456789", "000000", "5.160.1.1", "test-agent")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestLoginWithoutChallenge(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Login(context.Background(), "09123456789", "123456", "1.2.3.4", "agent")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestLoginAppendsDeviceLogWithLocation(t *testing.T) {
	f := newAuthFixture(t)
	f.signupAndLogin(t, "09123456789")

	ctx := context.Background()
	user, err := f.users.GetByPhone(ctx, "09123456789")
	require.NoError(t, err)

	logs, err := f.deviceLogs.ListByUser(ctx, user.UserID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "5.160.1.1", logs[0].IP)
	assert.Equal(t, "test-agent", logs[0].UserAgent)
	assert.Equal(t, "Tehran", logs[0].City)
	assert.Equal(t, "Iran", logs[0].Country)
}

func TestLoginPublishesEvent(t *testing.T) {
	f := newAuthFixture(t)
	f.signupAndLogin(t, "09123456789")

	require.Len(t, f.producer.topics, 1)
	assert.Equal(t, "auth.login-events", f.producer.topics[0])
	require.Len(t, f.sink.queries, 1)
	assert.Contains(t, f.sink.queries[0], "login_events")
}

func TestLoginSurvivesEventSinkFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.producer.fail = true
	f.sink.fail = true

	pair := f.signupAndLogin(t, "09123456789")
	assert.NotEmpty(t, pair.Access, "event fan-out is best effort")
}

func TestLoginAnomalyNotification(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SignUp(ctx, "09123456789", "5.160.1.1"))
	user, err := f.users.GetByPhone(ctx, "09123456789")
	require.NoError(t, err)

	// Seed four prior logins inside the window so the next one crosses
	// the threshold.
	for i := 0; i < 4; i++ {
		require.NoError(t, f.deviceLogs.Insert(ctx, &model.DeviceLog{
			UserID:   user.UserID,
			IP:       "5.160.1.1",
			LoggedAt: time.Now().UTC().Add(-time.Duration(i+1) * time.Minute),
		}))
	}

	code := f.otp.currentCode(t, "09123456789")
	_, err = f.svc.Login(ctx, "09123456789", code, "5.160.1.1", "test-agent")
	require.NoError(t, err)

	// The worker drains asynchronously.
	require.Eventually(t, func() bool {
		f.indexer.mu.Lock()
		defer f.indexer.mu.Unlock()
		return len(f.indexer.indexed) == 1
	}, time.Second, 10*time.Millisecond)

	alert := f.indexer.indexed[0].(*model.SecurityAlert)
	assert.Equal(t, user.UserID, alert.UserID)
	assert.Equal(t, 4, alert.LoginCount)
}

func TestLoginBelowAnomalyThresholdNoAlert(t *testing.T) {
	f := newAuthFixture(t)
	f.signupAndLogin(t, "09123456789")

	time.Sleep(50 * time.Millisecond)
	f.indexer.mu.Lock()
	defer f.indexer.mu.Unlock()
	assert.Empty(t, f.indexer.indexed)
}

func TestLogoutRevokesRefresh(t *testing.T) {
	f := newAuthFixture(t)
	pair := f.signupAndLogin(t, "09123456789")
	ctx := context.Background()

	require.NoError(t, f.svc.Logout(ctx, pair.Refresh))

	// Second logout of the same token is a client error.
	assert.ErrorIs(t, f.svc.Logout(ctx, pair.Refresh), ErrInvalidToken)

	// And the revoked token cannot refresh.
	_, err := f.svc.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogoutRejectsGarbageAndAccessTokens(t *testing.T) {
	f := newAuthFixture(t)
	pair := f.signupAndLogin(t, "09123456789")
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Logout(ctx, "not-a-token"), ErrInvalidToken)
	assert.ErrorIs(t, f.svc.Logout(ctx, pair.Access), ErrInvalidToken)
}

func TestRefreshRotatesAndRevokesOld(t *testing.T) {
	f := newAuthFixture(t)
	pair := f.signupAndLogin(t, "09123456789")
	ctx := context.Background()

	fresh, err := f.svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Refresh, fresh.Refresh)

	// The old refresh token is spent.
	_, err = f.svc.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The new one works.
	_, err = f.svc.Refresh(ctx, fresh.Refresh)
	assert.NoError(t, err)
}

func TestDevicesAndRevoke(t *testing.T) {
	f := newAuthFixture(t)
	f.signupAndLogin(t, "09123456789")
	ctx := context.Background()

	user, err := f.users.GetByPhone(ctx, "09123456789")
	require.NoError(t, err)

	logs, err := f.svc.Devices(ctx, user.UserID)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	require.NoError(t, f.svc.RevokeDevice(ctx, user.UserID, logs[0].ID))

	logs, err = f.svc.Devices(ctx, user.UserID)
	require.NoError(t, err)
	assert.Empty(t, logs)

	assert.ErrorIs(t, f.svc.RevokeDevice(ctx, user.UserID, "missing"), ErrDeviceLogNotFound)
}
