package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-auth/internal/config"
)

func TestConsoleSenderAlwaysSucceeds(t *testing.T) {
	s := NewConsoleSender()

	result, err := s.Send(context.Background(), "09123456789", "hello")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "console_test", result.MessageID)
	assert.Zero(t, result.Cost)
}

func TestNewSelectsProvider(t *testing.T) {
	assert.IsType(t, &ConsoleSender{}, New(config.SMSConfig{Provider: "console"}))
	assert.IsType(t, &ConsoleSender{}, New(config.SMSConfig{Provider: "bogus"}))
	assert.IsType(t, &KavenegarSender{}, New(config.SMSConfig{Provider: "kavenegar"}))
	assert.IsType(t, &MelipayamakSender{}, New(config.SMSConfig{Provider: "melipayamak"}))
}

func TestNormalizeReceptor(t *testing.T) {
	assert.Equal(t, "09123456789", normalizeReceptor("+989123456789"))
	assert.Equal(t, "09123456789", normalizeReceptor("09123456789"))
}

func TestKavenegarSenderSuccess(t *testing.T) {
	var gotReceptor, gotSender string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotReceptor = r.PostFormValue("receptor")
		gotSender = r.PostFormValue("sender")
		w.Write([]byte(`{"return":{"status":200,"message":"ok"},"entries":[{"messageid":8792343,"cost":120}]}`))
	}))
	defer ts.Close()

	s := NewKavenegarSender(config.SMSConfig{
		KavenegarAPIKey: "test-key",
		KavenegarSender: "10008663",
	})
	s.baseURL = ts.URL

	result, err := s.Send(context.Background(), "+989123456789", "کد تأیید")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "8792343", result.MessageID)
	assert.Equal(t, 120, result.Cost)
	assert.Equal(t, "09123456789", gotReceptor)
	assert.Equal(t, "10008663", gotSender)
}

func TestKavenegarSenderGatewayError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"return":{"status":411,"message":"receptor is invalid"},"entries":[]}`))
	}))
	defer ts.Close()

	s := NewKavenegarSender(config.SMSConfig{KavenegarAPIKey: "test-key"})
	s.baseURL = ts.URL

	result, err := s.Send(context.Background(), "09123456789", "msg")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "receptor is invalid", result.Error)
}

func TestKavenegarSenderUnreachable(t *testing.T) {
	s := NewKavenegarSender(config.SMSConfig{KavenegarAPIKey: "test-key"})
	s.baseURL = "http://127.0.0.1:1"

	result, err := s.Send(context.Background(), "09123456789", "msg")
	require.NoError(t, err, "transport failures are reported in the result, not as errors")
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestMelipayamakSenderSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "user", r.PostFormValue("username"))
		assert.Equal(t, "09123456789", r.PostFormValue("to"))
		assert.Equal(t, "50004001001000", r.PostFormValue("from"))
		w.Write([]byte(`{"RetStatus":1,"StrRetStatus":"Ok"}`))
	}))
	defer ts.Close()

	s := NewMelipayamakSender(config.SMSConfig{
		MelipayamakUsername: "user",
		MelipayamakPassword: "pass",
		MelipayamakSender:   "50004001001000",
	})
	s.baseURL = ts.URL

	result, err := s.Send(context.Background(), "09123456789", "msg")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Ok", result.MessageID)
}

func TestMelipayamakSenderGatewayError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"RetStatus":11,"StrRetStatus":"InvalidCredential"}`))
	}))
	defer ts.Close()

	s := NewMelipayamakSender(config.SMSConfig{MelipayamakUsername: "user"})
	s.baseURL = ts.URL

	result, err := s.Send(context.Background(), "09123456789", "msg")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "InvalidCredential", result.Error)
}

func TestGatewayOTPTemplate(t *testing.T) {
	var sent string
	fake := senderFunc(func(ctx context.Context, phone, message string) (*Result, error) {
		sent = message
		return &Result{Success: true}, nil
	})

	g := NewGateway(fake)
	_, err := g.SendOTP(context.Background(), "09123456789", "123456")
	require.NoError(t, err)
	assert.Contains(t, sent, "123456")
	assert.Contains(t, sent, "۵ دقیقه")
}

type senderFunc func(ctx context.Context, phone, message string) (*Result, error)

func (f senderFunc) Send(ctx context.Context, phone, message string) (*Result, error) {
	return f(ctx, phone, message)
}
