package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storefront-auth/internal/service"
	"storefront-auth/internal/util"
)

// envelope is the uniform response shape: success plus either data or an
// error code with a localized message.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

type AuthHandler struct {
	auth *service.AuthService
	otp  *service.OTPService
}

func NewAuthHandler(auth *service.AuthService, otp *service.OTPService) *AuthHandler {
	return &AuthHandler{auth: auth, otp: otp}
}

type phoneRequest struct {
	Phone string `json:"phone"`
}

type loginRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.otp.RequestChallenge(r.Context(), req.Phone); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, msgCodeSent)
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.otp.ResendChallenge(r.Context(), req.Phone); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, msgCodeSent)
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.auth.SignUp(r.Context(), req.Phone, clientIP(r)); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, msgSignupOK)
}

// Login handles both halves of the flow: without a code it sends a
// challenge, with one it verifies and mints tokens.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.OTP == "" {
		if err := h.otp.RequestChallenge(r.Context(), req.Phone); err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, nil, msgCodeSent)
		return
	}

	pair, err := h.auth.Login(r.Context(), req.Phone, req.OTP, clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, pair, "")
}

// VerifyOTP is the signup-completion endpoint: a valid code activates
// the account and returns the first token pair.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.OTP == "" {
		writeEnvelope(w, http.StatusBadRequest, envelope{
			Success: false,
			Code:    codeInvalidCode,
			Message: msgInvalidCode,
		})
		return
	}

	pair, err := h.auth.Login(r.Context(), req.Phone, req.OTP, clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, pair, "")
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.auth.Logout(r.Context(), req.Refresh); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, msgLoggedOut)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, pair, "")
}

func (h *AuthHandler) Devices(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if claims == nil {
		writeUnauthorized(w)
		return
	}

	logs, err := h.auth.Devices(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, logs, "")
}

func (h *AuthHandler) RevokeDevice(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if claims == nil {
		writeUnauthorized(w)
		return
	}

	logID := chi.URLParam(r, "id")
	if err := h.auth.RevokeDevice(r.Context(), claims.UserID, logID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, msgDeviceRevoked)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{
			Success: false,
			Code:    codeValidation,
			Message: msgValidation,
		})
		return false
	}
	return true
}

func writeSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	writeEnvelope(w, status, envelope{
		Success: true,
		Data:    data,
		Message: message,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status, code, message := mapError(err)

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	if status == http.StatusInternalServerError {
		util.Error("Request failed", zap.Error(err))
	}

	writeEnvelope(w, status, envelope{
		Success: false,
		Code:    code,
		Message: message,
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeEnvelope(w, http.StatusUnauthorized, envelope{
		Success: false,
		Code:    codeUnauthorized,
		Message: msgUnauthorized,
	})
}

func writeEnvelope(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		util.Warn("Failed to encode response", zap.Error(err))
	}
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrInvalidPhone):
		return http.StatusBadRequest, codeInvalidPhone, msgInvalidPhone
	case errors.Is(err, service.ErrInvalidOrExpiredCode):
		return http.StatusBadRequest, codeInvalidCode, msgInvalidCode
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusBadRequest, codeInvalidToken, msgInvalidToken
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, codeUserNotFound, msgUserNotFound
	case errors.Is(err, service.ErrDeviceLogNotFound):
		return http.StatusNotFound, codeDeviceNotFound, msgDeviceNotFound
	case errors.Is(err, service.ErrUserAlreadyExists):
		return http.StatusConflict, codeDuplicatePhone, msgDuplicatePhone
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, codeRateLimited, msgRateLimited
	default:
		return http.StatusInternalServerError, codeInternal, msgInternal
	}
}
