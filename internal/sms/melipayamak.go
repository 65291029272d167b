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

const melipayamakBaseURL = "https://rest.payamak-panel.com/api/SendSMS/SendSMS"

// MelipayamakSender talks to the Melipayamak panel API.
type MelipayamakSender struct {
	username string
	password string
	sender   string
	baseURL  string
	client   *http.Client
}

func NewMelipayamakSender(cfg config.SMSConfig) *MelipayamakSender {
	return &MelipayamakSender{
		username: cfg.MelipayamakUsername,
		password: cfg.MelipayamakPassword,
		sender:   cfg.MelipayamakSender,
		baseURL:  melipayamakBaseURL,
		client:   newHTTPClient(),
	}
}

type melipayamakResponse struct {
	RetStatus    int    `json:"RetStatus"`
	StrRetStatus string `json:"StrRetStatus"`
}

func (s *MelipayamakSender) Send(ctx context.Context, phone, message string) (*Result, error) {
	form := url.Values{}
	form.Set("username", s.username)
	form.Set("password", s.password)
	form.Set("to", normalizeReceptor(phone))
	form.Set("from", s.sender)
	form.Set("text", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build melipayamak request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		util.Error("Melipayamak request failed",
			zap.String("phone", util.MaskPhone(phone)),
			zap.Error(err))
		return &Result{Success: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	var body melipayamakResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return &Result{Success: false, Error: "invalid gateway response"}, nil
	}

	if body.RetStatus != 1 {
		errMsg := body.StrRetStatus
		if errMsg == "" {
			errMsg = "خطای نامشخص"
		}
		return &Result{Success: false, Error: errMsg}, nil
	}

	return &Result{
		Success:   true,
		MessageID: body.StrRetStatus,
		Cost:      0,
	}, nil
}
