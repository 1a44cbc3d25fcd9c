package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
)

// InterestAPI exposes the registrar over HTTP.
type InterestAPI struct {
	Registrar registry.Registrar
	Logger    *slog.Logger
}

func NewInterestAPI(registrar registry.Registrar, logger *slog.Logger) *InterestAPI {
	return &InterestAPI{
		Registrar: registrar,
		Logger:    logger,
	}
}

type RegisterRequest struct {
	Interest string `json:"interest"`
	Token    string `json:"token"`
}

// UnregisterRequest omits Token to drop every token of the interest.
type UnregisterRequest struct {
	Interest string `json:"interest"`
	Token    string `json:"token,omitempty"`
}

type UnregisterResponse struct {
	Removed bool `json:"removed"`
}

type LookupRequest struct {
	Interests []string `json:"interests"`
}

type TokensResponse struct {
	Tokens []string `json:"tokens"`
}

// --- REGISTER ---

func (api *InterestAPI) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Interest == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing interest")
		return
	}

	if _, err := api.Registrar.RegisterInterest(ctx, req.Interest, req.Token); err != nil {
		if errors.Is(err, registry.ErrInvalidToken) {
			api.Logger.Warn("Register: Validation failed", "reason", "invalid token", "interest", req.Interest)
			response.WriteJSONError(w, http.StatusBadRequest, "invalid expo push token")
			return
		}
		api.Logger.Error("failed to register interest", "interest", req.Interest, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	api.Logger.Info("Register: Token registered", "interest", req.Interest, "user", callerOf(r))

	w.WriteHeader(http.StatusNoContent)
}

// --- UNREGISTER ---

func (api *InterestAPI) Unregister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UnregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Interest == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing interest")
		return
	}

	removed, err := api.Registrar.RemoveInterest(ctx, req.Interest, req.Token)
	if err != nil {
		api.Logger.Error("failed to unregister interest", "interest", req.Interest, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	api.Logger.Info("Unregister: Interest updated", "interest", req.Interest, "removed", removed, "user", callerOf(r))

	writeJSON(w, http.StatusOK, UnregisterResponse{Removed: removed})
}

// --- LOOKUP ---

func (api *InterestAPI) Lookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	api.lookup(w, r, req.Interests)
}

// Get serves GET /api/v1/interests/{interest}.
func (api *InterestAPI) Get(w http.ResponseWriter, r *http.Request) {
	interest := r.PathValue("interest")
	if interest == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing interest")
		return
	}
	api.lookup(w, r, []string{interest})
}

func (api *InterestAPI) lookup(w http.ResponseWriter, r *http.Request, interests []string) {
	tokens, err := api.Registrar.GetInterests(r.Context(), interests)
	if err != nil {
		api.Logger.Error("failed to look up interests", "count", len(interests), "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	writeJSON(w, http.StatusOK, TokensResponse{Tokens: tokens})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// callerOf returns the authenticated user handle, or "" when auth is disabled.
func callerOf(r *http.Request) string {
	handle, _ := middleware.GetUserHandleFromContext(r.Context())
	return handle
}
