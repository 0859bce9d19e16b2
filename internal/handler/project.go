package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/filipexyz/keygate/internal/domain"
	"github.com/filipexyz/keygate/internal/engine"
)

// ProjectHandler serves the project namespace endpoints.
type ProjectHandler struct {
	engine *engine.Engine
}

func NewProjectHandler(eng *engine.Engine) *ProjectHandler {
	return &ProjectHandler{engine: eng}
}

type createProjectRequest struct {
	// NamespaceID is 16 hex-encoded bytes. Empty means the server picks a
	// random one; the response carries whichever was used.
	NamespaceID      string `json:"namespace_id,omitempty"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	DefaultRateLimit uint32 `json:"default_rate_limit"`
}

type projectResponse struct {
	Address           domain.Address     `json:"address"`
	Owner             domain.Identity    `json:"owner"`
	NamespaceID       domain.NamespaceID `json:"namespace_id"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	DefaultRateLimit  uint32             `json:"default_rate_limit"`
	TotalCredentials  uint16             `json:"total_credentials"`
	ActiveCredentials uint16             `json:"active_credentials"`
	CreatedAt         uint64             `json:"created_at"`
}

func newProjectResponse(addr domain.Address, p domain.Project) projectResponse {
	return projectResponse{
		Address:           addr,
		Owner:             p.Owner,
		NamespaceID:       p.NamespaceID,
		Name:              p.Name,
		Description:       p.Description,
		DefaultRateLimit:  p.DefaultRateLimit,
		TotalCredentials:  p.TotalCredentials,
		ActiveCredentials: p.ActiveCredentials,
		CreatedAt:         p.CreatedAt,
	}
}

// Create handles POST /api/v1/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	var nsID domain.NamespaceID
	if req.NamespaceID == "" {
		nsID = domain.GenerateNamespaceID()
	} else {
		parsed, err := domain.ParseNamespaceID(req.NamespaceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid namespace_id")
			return
		}
		nsID = parsed
	}

	addr, err := h.engine.CreateProject(r.Context(), owner, nsID, req.Name, req.Description, req.DefaultRateLimit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	p, err := h.engine.GetProject(addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProjectResponse(addr, p))
}

// Get handles GET /api/v1/projects/{address}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project address")
		return
	}
	p, err := h.engine.GetProject(addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProjectResponse(addr, p))
}

type transferOwnerRequest struct {
	NewOwner string `json:"new_owner"`
}

// Transfer handles POST /api/v1/projects/{address}/transfer.
func (h *ProjectHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project address")
		return
	}

	var req transferOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	newOwner, err := domain.ParseIdentity(req.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid new_owner")
		return
	}

	if err := h.engine.TransferProjectOwner(r.Context(), owner, addr, newOwner); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

// Close handles DELETE /api/v1/projects/{address}.
func (h *ProjectHandler) Close(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project address")
		return
	}
	if err := h.engine.CloseProject(r.Context(), owner, addr); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
