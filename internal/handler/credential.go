package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/filipexyz/keygate/internal/domain"
	"github.com/filipexyz/keygate/internal/engine"
	"github.com/filipexyz/keygate/internal/scope"
)

// CredentialHandler serves credential issuance, verification, and lifecycle
// endpoints. Scope names in requests are resolved through the registry;
// records only ever hold the bitmask.
type CredentialHandler struct {
	engine *engine.Engine
	scopes *scope.Registry
}

func NewCredentialHandler(eng *engine.Engine, scopes *scope.Registry) *CredentialHandler {
	return &CredentialHandler{engine: eng, scopes: scopes}
}

type issueCredentialRequest struct {
	Index      uint16   `json:"index"`
	Name       string   `json:"name"`
	SecretHash string   `json:"secret_hash"`
	Scopes     []string `json:"scopes,omitempty"`
	ScopeMask  *uint64  `json:"scope_mask,omitempty"`
	ExpiresAt  *uint64  `json:"expires_at,omitempty"`
	RateLimit  *uint32  `json:"rate_limit,omitempty"`
}

type credentialResponse struct {
	Address             domain.Address `json:"address"`
	Project             domain.Address `json:"project"`
	Index               uint16         `json:"index"`
	Name                string         `json:"name"`
	Scopes              []string       `json:"scopes"`
	ScopeMask           uint64         `json:"scope_mask"`
	Status              domain.Status  `json:"status"`
	RateLimit           uint32         `json:"rate_limit"`
	ExpiresAt           *uint64        `json:"expires_at,omitempty"`
	CreatedAt           uint64         `json:"created_at"`
	LastVerifiedAt      *uint64        `json:"last_verified_at,omitempty"`
	TotalVerifications  uint64         `json:"total_verifications"`
	FailedVerifications uint8          `json:"failed_verifications"`
}

func (h *CredentialHandler) newCredentialResponse(addr domain.Address, c domain.Credential) credentialResponse {
	return credentialResponse{
		Address:             addr,
		Project:             c.ProjectRef,
		Index:               c.Index,
		Name:                c.Name,
		Scopes:              h.scopes.Names(c.Scopes),
		ScopeMask:           c.Scopes,
		Status:              c.Status,
		RateLimit:           c.RateLimit,
		ExpiresAt:           c.ExpiresAt,
		CreatedAt:           c.CreatedAt,
		LastVerifiedAt:      c.LastVerifiedAt,
		TotalVerifications:  c.TotalVerifications,
		FailedVerifications: c.FailedVerifications,
	}
}

// resolveScopes turns a request's scope fields into a bitmask. An explicit
// mask wins over names; both absent means zero (no permissions).
func (h *CredentialHandler) resolveScopes(names []string, mask *uint64) (uint64, error) {
	if mask != nil {
		return *mask, nil
	}
	return h.scopes.Parse(names)
}

func credAddrParam(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid credential address")
		return domain.Address{}, false
	}
	return addr, true
}

// Issue handles POST /api/v1/projects/{address}/credentials.
func (h *CredentialHandler) Issue(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	projectAddr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project address")
		return
	}

	var req issueCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	secretHash, err := domain.ParseHash(req.SecretHash)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid secret_hash")
		return
	}
	mask, err := h.resolveScopes(req.Scopes, req.ScopeMask)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	credAddr, err := h.engine.IssueCredential(r.Context(), owner, projectAddr,
		req.Index, req.Name, secretHash, mask, req.ExpiresAt, req.RateLimit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	c, err := h.engine.GetCredential(credAddr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.newCredentialResponse(credAddr, c))
}

// Get handles GET /api/v1/credentials/{address}.
func (h *CredentialHandler) Get(w http.ResponseWriter, r *http.Request) {
	addr, ok := credAddrParam(w, r)
	if !ok {
		return
	}
	c, err := h.engine.GetCredential(addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.newCredentialResponse(addr, c))
}

type usageResponse struct {
	Credential   domain.Address `json:"credential"`
	WindowStart  uint64         `json:"window_start"`
	RequestCount uint32         `json:"request_count"`
	LastUsedAt   uint64         `json:"last_used_at"`
}

// GetUsage handles GET /api/v1/credentials/{address}/usage.
func (h *CredentialHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	addr, ok := credAddrParam(w, r)
	if !ok {
		return
	}
	u, err := h.engine.GetUsage(addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, usageResponse{
		Credential:   u.CredentialRef,
		WindowStart:  u.WindowStart,
		RequestCount: u.RequestCount,
		LastUsedAt:   u.LastUsedAt,
	})
}

type verifyRequest struct {
	SecretHash     string   `json:"secret_hash"`
	RequiredScopes []string `json:"required_scopes,omitempty"`
	RequiredMask   *uint64  `json:"required_mask,omitempty"`
}

type verifyResponse struct {
	Verified           bool   `json:"verified"`
	Slot               uint64 `json:"slot"`
	RequestCount       uint32 `json:"request_count"`
	TotalVerifications uint64 `json:"total_verifications"`
}

// Verify handles POST /api/v1/credentials/{address}/verify. This endpoint is
// open to any caller holding the secret; no identity header is required.
func (h *CredentialHandler) Verify(w http.ResponseWriter, r *http.Request) {
	addr, ok := credAddrParam(w, r)
	if !ok {
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	presented, err := domain.ParseHash(req.SecretHash)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid secret_hash")
		return
	}
	required, err := h.resolveScopes(req.RequiredScopes, req.RequiredMask)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.engine.Verify(r.Context(), addr, presented, required)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		Verified:           true,
		Slot:               result.Slot,
		RequestCount:       result.RequestCount,
		TotalVerifications: result.TotalVerifications,
	})
}

type rotateRequest struct {
	SecretHash string  `json:"secret_hash"`
	ExpiresAt  *uint64 `json:"expires_at,omitempty"`
}

// Rotate handles POST /api/v1/credentials/{address}/rotate.
func (h *CredentialHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	addr, ok := credAddrParam(w, r)
	if !ok {
		return
	}

	var req rotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	newHash, err := domain.ParseHash(req.SecretHash)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid secret_hash")
		return
	}

	if err := h.engine.RotateCredential(r.Context(), owner, addr, newHash, req.ExpiresAt); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rotated"})
}

type updateScopesRequest struct {
	Scopes    []string `json:"scopes,omitempty"`
	ScopeMask *uint64  `json:"scope_mask,omitempty"`
}

// UpdateScopes handles PUT /api/v1/credentials/{address}/scopes.
func (h *CredentialHandler) UpdateScopes(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	addr, ok := credAddrParam(w, r)
	if !ok {
		return
	}

	var req updateScopesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mask, err := h.resolveScopes(req.Scopes, req.ScopeMask)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.UpdateScopes(r.Context(), owner, addr, mask); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scopes":     h.scopes.Names(mask),
		"scope_mask": mask,
	})
}

type updateRateLimitRequest struct {
	RateLimit uint32 `json:"rate_limit"`
}

// UpdateRateLimit handles PUT /api/v1/credentials/{address}/rate-limit.
func (h *CredentialHandler) UpdateRateLimit(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	addr, ok := credAddrParam(w, r)
	if !ok {
		return
	}

	var req updateRateLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.engine.UpdateRateLimit(r.Context(), owner, addr, req.RateLimit); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"rate_limit": req.RateLimit})
}

// Suspend handles POST /api/v1/credentials/{address}/suspend.
func (h *CredentialHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.engine.SuspendCredential, "suspended")
}

// Reactivate handles POST /api/v1/credentials/{address}/reactivate.
func (h *CredentialHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.engine.ReactivateCredential, "active")
}

// Revoke handles POST /api/v1/credentials/{address}/revoke.
func (h *CredentialHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.engine.RevokeCredential, "revoked")
}

func (h *CredentialHandler) statusChange(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, owner domain.Identity, addr domain.Address) error,
	status string,
) {
	owner, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	addr, ok := credAddrParam(w, r)
	if !ok {
		return
	}
	if err := op(r.Context(), owner, addr); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// CloseUsage handles DELETE /api/v1/credentials/{address}/usage.
func (h *CredentialHandler) CloseUsage(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	addr, ok := credAddrParam(w, r)
	if !ok {
		return
	}
	if err := h.engine.CloseUsageCounter(r.Context(), owner, addr); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Close handles DELETE /api/v1/credentials/{address}.
func (h *CredentialHandler) Close(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	addr, ok := credAddrParam(w, r)
	if !ok {
		return
	}
	if err := h.engine.CloseCredential(r.Context(), owner, addr); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
