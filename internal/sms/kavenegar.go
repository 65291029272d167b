package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"storefront-auth/internal/config"
	"storefront-auth/internal/util"
)

const kavenegarBaseURL = "https://api.kavenegar.com/v1"

// KavenegarSender talks to the Kavenegar REST gateway.
type KavenegarSender struct {
	apiKey  string
	sender  string
	baseURL string
	client  *http.Client
}

func NewKavenegarSender(cfg config.SMSConfig) *KavenegarSender {
	return &KavenegarSender{
		apiKey:  cfg.KavenegarAPIKey,
		sender:  cfg.KavenegarSender,
		baseURL: kavenegarBaseURL,
		client:  newHTTPClient(),
	}
}

type kavenegarResponse struct {
	Return struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"return"`
	Entries []struct {
		MessageID json.Number `json:"messageid"`
		Cost      int         `json:"cost"`
	} `json:"entries"`
}

func (s *KavenegarSender) Send(ctx context.Context, phone, message string) (*Result, error) {
	endpoint := fmt.Sprintf("%s/%s/sms/send.json", s.baseURL, s.apiKey)

	form := url.Values{}
	form.Set("receptor", normalizeReceptor(phone))
	form.Set("message", message)
	form.Set("sender", s.sender)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build kavenegar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		util.Error("Kavenegar request failed",
			zap.String("phone", util.MaskPhone(phone)),
			zap.Error(err))
		return &Result{Success: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	var body kavenegarResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return &Result{Success: false, Error: "invalid gateway response"}, nil
	}

	if body.Return.Status != 200 || len(body.Entries) == 0 {
		errMsg := body.Return.Message
		if errMsg == "" {
			errMsg = "خطای نامشخص"
		}
		return &Result{Success: false, Error: errMsg}, nil
	}

	return &Result{
		Success:   true,
		MessageID: body.Entries[0].MessageID.String(),
		Cost:      body.Entries[0].Cost,
	}, nil
}
