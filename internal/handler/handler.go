// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/auth"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/model"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/repository"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/service"
)

// CampHandler holds all HTTP handlers for the camp scheduling API.
type CampHandler struct {
	svc *service.CampService
	log logrus.FieldLogger
}

// NewCampHandler constructs a CampHandler.
func NewCampHandler(svc *service.CampService, log logrus.FieldLogger) *CampHandler {
	return &CampHandler{svc: svc, log: log}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func caller(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

// fail maps service and repository errors to HTTP responses.
func (h *CampHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid camp configuration", Fields: verr.Fields})
	case errors.Is(err, service.ErrInvalidConfiguration):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrNoSlotsAvailable):
		writeError(w, http.StatusConflict, "camp is fully booked")
	case errors.Is(err, repository.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "you are already registered for this camp")
	default:
		h.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Unauthorized is the auth middleware failure callback.
func (h *CampHandler) Unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	h.log.WithError(err).Debug("rejected token")
	h.fail(w, r, err)
}

// ─── Camps ────────────────────────────────────────────────────────────────────

// CreateCamp handles POST /api/camps
// Creates a camp and generates its slots.
func (h *CampHandler) CreateCamp(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCampRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	camp, err := h.svc.CreateCamp(r.Context(), caller(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.WithFields(logrus.Fields{"camp_id": camp.ID, "slots": len(camp.Slots)}).Info("camp created")
	writeJSON(w, http.StatusCreated, camp)
}

// ListCamps handles GET /api/camps
// Organizers get their own camps, donors get upcoming camps.
func (h *CampHandler) ListCamps(w http.ResponseWriter, r *http.Request) {
	camps, err := h.svc.ListCamps(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if camps == nil {
		camps = []model.Camp{}
	}
	writeJSON(w, http.StatusOK, camps)
}

// GetCamp handles GET /api/camps/{id}
func (h *CampHandler) GetCamp(w http.ResponseWriter, r *http.Request) {
	camp, err := h.svc.GetCamp(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, camp)
}

// UpdateCamp handles PATCH /api/camps/{id}
// Only title, venue and date are editable.
func (h *CampHandler) UpdateCamp(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateCampRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	camp, err := h.svc.UpdateCamp(r.Context(), caller(r), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, camp)
}

// DeleteCamp handles DELETE /api/camps/{id}
// Deletes the camp and all its registrations.
func (h *CampHandler) DeleteCamp(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteCamp(r.Context(), caller(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.WithField("camp_id", id).Info("camp deleted")
	w.WriteHeader(http.StatusNoContent)
}

// CampSummaries handles GET /api/camps/summary
func (h *CampHandler) CampSummaries(w http.ResponseWriter, r *http.Request) {
	dash, err := h.svc.CampSummaries(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// ─── Registrations ────────────────────────────────────────────────────────────

// Register handles POST /api/camps/{id}/register
// Claims the earliest free slot for the calling donor.
func (h *CampHandler) Register(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.RegisterDonor(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.WithFields(logrus.Fields{
		"camp_id":         reg.CampID,
		"registration_id": reg.ID,
		"slot":            reg.SlotStart + "-" + reg.SlotEnd,
	}).Info("donor registered")
	writeJSON(w, http.StatusCreated, reg)
}

// ListCampRegistrations handles GET /api/camps/{id}/registrations
func (h *CampHandler) ListCampRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.ListCampRegistrations(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// ListMyRegistrations handles GET /api/registrations
// ?include=cancelled adds cancelled history.
func (h *CampHandler) ListMyRegistrations(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("include") == "cancelled"
	regs, err := h.svc.ListMyRegistrations(r.Context(), caller(r), all)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// CancelRegistration handles POST /api/registrations/{id}/cancel
func (h *CampHandler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.CancelRegistration(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
