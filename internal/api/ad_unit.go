package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/middleware"
	"github.com/patrickwarner/adbroker/internal/models"
)

const maxAdUnitBody = 64 << 10

const (
	msgAdUnitAdded     = "Ad unit added successfully"
	msgAdUnitExists    = "Ad unit already exists"
	msgMissingFields   = "Missing required fields: id, sizes, deviceType"
	msgInvalidBody     = "Invalid request body"
	msgInternalFailure = "Internal server error"
	msgAdUnitNotFound  = "Ad unit not found"
)

type adUnitRequest struct {
	ID         string        `json:"id"`
	Sizes      []models.Size `json:"sizes"`
	DeviceType string        `json:"deviceType"`
}

// AddAdUnitHandler handles POST /ad-unit.
func (s *Server) AddAdUnitHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "ad_unit"
	const method = "POST"
	logger := middleware.LoggerFromRequest(r, s.Logger)

	respond := func(status int, msg string) {
		writeJSON(w, logger, status, messageResponse{Message: msg})
		s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	}

	var req adUnitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxAdUnitBody)).Decode(&req); err != nil {
		logger.Debug("bad ad unit body", zap.Error(err))
		respond(http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.ID == "" || len(req.Sizes) == 0 || req.DeviceType == "" {
		respond(http.StatusBadRequest, msgMissingFields)
		return
	}

	unit := models.AdUnit{ID: req.ID, Sizes: req.Sizes, DeviceType: models.DeviceType(req.DeviceType)}
	err := s.Registry.Register(r.Context(), unit)
	switch {
	case err == nil:
		respond(http.StatusCreated, msgAdUnitAdded)
	case errors.Is(err, models.ErrAlreadyExists):
		respond(http.StatusBadRequest, msgAdUnitExists)
	case errors.Is(err, models.ErrValidation):
		respond(http.StatusBadRequest, err.Error())
	default:
		logger.Error("register ad unit", zap.String("ad_unit_id", req.ID), zap.Error(err))
		respond(http.StatusInternalServerError, msgInternalFailure)
	}
}

// ListAdUnitsHandler handles GET /ad-units, returning units in registration
// order.
func (s *Server) ListAdUnitsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "ad_units"
	const method = "GET"
	logger := middleware.LoggerFromRequest(r, s.Logger)

	units := s.Registry.List()
	if units == nil {
		units = []models.AdUnit{}
	}
	writeJSON(w, logger, http.StatusOK, units)

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

// GetAdUnitHandler handles GET /ad-units/{id}.
func (s *Server) GetAdUnitHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "ad_unit_get"
	const method = "GET"
	logger := middleware.LoggerFromRequest(r, s.Logger)

	status := http.StatusOK
	if unit, ok := s.Registry.Get(mux.Vars(r)["id"]); ok {
		writeJSON(w, logger, status, unit)
	} else {
		status = http.StatusNotFound
		writeJSON(w, logger, status, messageResponse{Message: msgAdUnitNotFound})
	}

	s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
