package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/reviewpilot/engine/internal/api/middleware"
	"github.com/reviewpilot/engine/internal/api/types"
	"github.com/reviewpilot/engine/internal/models"
	"github.com/reviewpilot/engine/internal/services"
	appErr "github.com/reviewpilot/engine/pkg/errors"
)

// GraphsHandler exposes the per-course knowledge graph over HTTP. Reads are
// open; mutations require the caller to be the course owner or an admin.
type GraphsHandler struct {
	graphs  services.GraphService
	courses services.CourseService
}

func NewGraphsHandler(graphs services.GraphService, courses services.CourseService) *GraphsHandler {
	return &GraphsHandler{graphs: graphs, courses: courses}
}

func courseIDParam(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil {
		return 0, appErr.New(appErr.CodeInvalid, "invalid course id")
	}
	return id, nil
}

// requireWriter resolves ownership and checks the caller may mutate the
// course's graph. The graph engine itself performs no authorization.
func (h *GraphsHandler) requireWriter(r *http.Request, courseID uint64) error {
	owner, err := h.courses.OwnerID(r.Context(), courseID)
	if err != nil {
		return err
	}
	if middleware.GetUserRole(r.Context()) == string(models.RoleAdmin) {
		return nil
	}
	uid, err := uuid.Parse(middleware.GetUserID(r.Context()))
	if err != nil || uid != owner {
		return appErr.New(appErr.CodeForbidden, "not course owner or admin")
	}
	return nil
}

// Nodes

func (h *GraphsHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	nodes, err := h.graphs.ListNodes(r.Context(), courseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: nodes})
}

func (h *GraphsHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	detail, err := h.graphs.GetNode(r.Context(), courseID, chi.URLParam(r, "nodeID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: detail})
}

func (h *GraphsHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireWriter(r, courseID); err != nil {
		writeError(w, err)
		return
	}

	var in services.CreateNodeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	node, err := h.graphs.CreateNode(r.Context(), courseID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/graphs/%d/nodes/%s", courseID, node.ID))
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: node})
}

func (h *GraphsHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireWriter(r, courseID); err != nil {
		writeError(w, err)
		return
	}

	var in services.UpdateNodeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	node, err := h.graphs.UpdateNode(r.Context(), courseID, chi.URLParam(r, "nodeID"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: node})
}

func (h *GraphsHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireWriter(r, courseID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.graphs.DeleteNode(r.Context(), courseID, chi.URLParam(r, "nodeID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Relations

func (h *GraphsHandler) ListRelations(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	rels, err := h.graphs.ListRelations(r.Context(), courseID, services.RelationFilter{
		From: q.Get("from"),
		To:   q.Get("to"),
		Type: q.Get("type"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: rels})
}

func (h *GraphsHandler) CreateRelation(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireWriter(r, courseID); err != nil {
		writeError(w, err)
		return
	}

	var in services.CreateRelationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	rel, err := h.graphs.CreateRelation(r.Context(), courseID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/graphs/%d/relations/%s", courseID, rel.ID))
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: rel})
}

func (h *GraphsHandler) UpdateRelation(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireWriter(r, courseID); err != nil {
		writeError(w, err)
		return
	}

	var in services.UpdateRelationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	rel, err := h.graphs.UpdateRelation(r.Context(), courseID, chi.URLParam(r, "relationID"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: rel})
}

func (h *GraphsHandler) DeleteRelation(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireWriter(r, courseID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.graphs.DeleteRelation(r.Context(), courseID, chi.URLParam(r, "relationID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
