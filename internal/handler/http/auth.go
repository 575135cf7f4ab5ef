package http

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/tidycrew/fieldops-backend-go/internal/handler/http/response"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/jwt"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/validator"
)

type AuthHandler interface {
	Token(w http.ResponseWriter, r *http.Request)
}

type authHandlerImpl struct {
	jwtService   jwt.Service
	provisionKey string
}

// NewAuthHandler wires the token endpoint. Cleaner identity lives in the
// dispatch system; it exchanges its provisioning key for per-cleaner access
// tokens here, so this service never stores credentials.
func NewAuthHandler(jwtService jwt.Service, provisionKey string) AuthHandler {
	return &authHandlerImpl{
		jwtService:   jwtService,
		provisionKey: provisionKey,
	}
}

type tokenRequest struct {
	CleanerID    string `json:"cleaner_id"`
	Name         string `json:"name"`
	ProvisionKey string `json:"provision_key"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Token implements AuthHandler.
func (h *authHandlerImpl) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.ProvisionKey), []byte(h.provisionKey)) != 1 {
		response.Unauthorized(w, "Invalid provisioning key")
		return
	}

	if validator.IsEmpty(req.CleanerID) {
		response.ValidationError(w, map[string]string{
			"cleaner_id": "cleaner_id is required",
		})
		return
	}

	token, expiresAt, err := h.jwtService.GenerateAccessToken(req.CleanerID, req.Name)
	if err != nil {
		response.InternalServerError(w, "Failed to generate token")
		return
	}

	response.Success(w, tokenResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
	})
}
