package handlers

import (
	"encoding/json"
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

type CoursesHandler struct {
	courses  services.CourseService
	validate interface{ Struct(any) error }
}

func NewCoursesHandler(courses services.CourseService, v interface{ Struct(any) error }) *CoursesHandler {
	return &CoursesHandler{courses: courses, validate: v}
}

func (h *CoursesHandler) List(w http.ResponseWriter, r *http.Request) {
	authorID, err := uuid.Parse(middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, appErr.New(appErr.CodeUnauthorized, "missing user identity"))
		return
	}
	items, err := h.courses.ListCourses(r.Context(), authorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: items})
}

func (h *CoursesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.CourseCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, err.Error())
		return
	}

	authorID, err := uuid.Parse(middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, appErr.New(appErr.CodeUnauthorized, "missing user identity"))
		return
	}
	c, err := h.courses.CreateCourse(r.Context(), authorID, services.CreateCourseInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: c})
}

func (h *CoursesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil {
		writeError(w, appErr.New(appErr.CodeInvalid, "invalid course id"))
		return
	}
	c, err := h.courses.GetCourse(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: c})
}

func (h *CoursesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil {
		writeError(w, appErr.New(appErr.CodeInvalid, "invalid course id"))
		return
	}

	c, err := h.courses.GetCourse(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	uid, _ := uuid.Parse(middleware.GetUserID(r.Context()))
	if middleware.GetUserRole(r.Context()) != string(models.RoleAdmin) && uid != c.AuthorID {
		writeError(w, appErr.New(appErr.CodeForbidden, "not course owner or admin"))
		return
	}

	if err := h.courses.DeleteCourse(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
