package handler

import (
	"net/http"

	"github.com/go-fanout-relay/internal/application/otp"
	"github.com/go-fanout-relay/internal/domain"
	"github.com/go-fanout-relay/internal/pkg/validate"
)

// OTPHandler handles one-time code issuance and verification.
type OTPHandler struct {
	svc otp.Service
}

func NewOTPHandler(svc otp.Service) *OTPHandler {
	return &OTPHandler{svc: svc}
}

type codeRequest struct {
	Kind       string `json:"kind" validate:"required"`
	Identifier string `json:"identifier" validate:"required"`
}

type verifyRequest struct {
	codeRequest
	Code string `json:"code" validate:"required"`
}

func (h *OTPHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, maxOTPBody, &req) {
		return
	}
	ident, ok := parseIdentifier(w, r, req)
	if !ok {
		return
	}
	if err := h.svc.RequestCode(r.Context(), ident); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "code sent"})
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, maxOTPBody, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ident, ok := parseIdentifier(w, r, req.codeRequest)
	if !ok {
		return
	}
	res, err := h.svc.VerifyCode(r.Context(), ident, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{
		Token:     res.Token.String(),
		Identity:  res.Claims.Identity(),
		ExpiresAt: res.Claims.ExpiresAt.Time,
	})
}

func parseIdentifier(w http.ResponseWriter, r *http.Request, req codeRequest) (domain.Identifier, bool) {
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return domain.Identifier{}, false
	}
	kind, err := domain.ParseIdentityKind(req.Kind)
	if err != nil {
		writeServiceError(w, r, err)
		return domain.Identifier{}, false
	}
	return domain.NewIdentifier(kind, req.Identifier), true
}
