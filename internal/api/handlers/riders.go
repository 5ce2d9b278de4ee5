// Package handlers contains the HTTP handler implementations for the rider
// profile API.
//
// This file implements the Rider handler:
//   - Create, Get, List (filtered, cursor-paginated), full replace (PUT),
//     partial update (PATCH), soft Delete
//   - Route registration
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ridecast/internal/core"
	"ridecast/internal/db"
	"ridecast/internal/types"
)

// defaultTimezone is applied when a rider is created without one. All hour
// math for the rider happens in this zone.
const defaultTimezone = "America/New_York"

// defaultVehicleType is applied when a rider is created without one.
const defaultVehicleType = "motorcycle"

// RiderRepo defines the data access contract for rider operations. Mirrors
// the concrete db.RiderRepository methods used by this handler; handlers
// depend on the abstraction so tests can inject fakes.
type RiderRepo interface {
	Create(ctx context.Context, rider *types.Rider) error
	GetByID(ctx context.Context, id string) (*types.Rider, error)
	List(ctx context.Context, params db.ListRidersParams) ([]*types.Rider, types.PageInfo, error)
	Update(ctx context.Context, rider *types.Rider) error
	Delete(ctx context.Context, id string) error
}

// --- Request Models ---

// CreateRiderRequest is the request body for POST /v1/riders.
type CreateRiderRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=120"`
	DisplayName string `json:"display_name,omitempty" validate:"omitempty,max=120"`
	Email       string `json:"email" validate:"required,email"`
	BackupEmail string `json:"backup_email,omitempty" validate:"omitempty,email"`
	Enabled     *bool  `json:"enabled,omitempty"`
	Timezone    string `json:"timezone,omitempty" validate:"omitempty,timezone"`

	RideIn   types.HourWindow `json:"ride_in_hours"`
	RideBack types.HourWindow `json:"ride_back_hours"`

	Locations []types.Location `json:"locations" validate:"required,min=1,max=10,dive"`

	Preferences   *types.WeatherPreferences   `json:"weather_preferences,omitempty"`
	Notifications *types.NotificationSettings `json:"notification_settings,omitempty"`

	VehicleType string   `json:"vehicle_type,omitempty" validate:"omitempty,max=50"`
	CommuteDays []string `json:"commute_days,omitempty" validate:"omitempty,max=7,dive,weekday"`
}

// ReplaceRiderRequest is the request body for PUT /v1/riders/{id}. Every
// mutable field must be supplied; PUT is a full replacement.
type ReplaceRiderRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=120"`
	DisplayName string `json:"display_name,omitempty" validate:"omitempty,max=120"`
	Email       string `json:"email" validate:"required,email"`
	BackupEmail string `json:"backup_email,omitempty" validate:"omitempty,email"`
	Enabled     bool   `json:"enabled"`
	Timezone    string `json:"timezone" validate:"required,timezone"`

	RideIn   types.HourWindow `json:"ride_in_hours"`
	RideBack types.HourWindow `json:"ride_back_hours"`

	Locations []types.Location `json:"locations" validate:"required,min=1,max=10,dive"`

	Preferences   types.WeatherPreferences   `json:"weather_preferences"`
	Notifications types.NotificationSettings `json:"notification_settings"`

	VehicleType string   `json:"vehicle_type,omitempty" validate:"omitempty,max=50"`
	CommuteDays []string `json:"commute_days,omitempty" validate:"omitempty,max=7,dive,weekday"`
}

// UpdateRiderRequest is the request body for PATCH /v1/riders/{id}. Pointer
// fields distinguish "absent" from "zero"; absent fields keep their current
// value. Array fields are replaced whole, never merged.
type UpdateRiderRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=120"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	BackupEmail *string `json:"backup_email,omitempty" validate:"omitempty,email"`
	Enabled     *bool   `json:"enabled,omitempty"`
	Timezone    *string `json:"timezone,omitempty" validate:"omitempty,timezone"`

	RideIn   *types.HourWindow `json:"ride_in_hours,omitempty"`
	RideBack *types.HourWindow `json:"ride_back_hours,omitempty"`

	Locations *[]types.Location `json:"locations,omitempty" validate:"omitempty,min=1,max=10,dive"`

	Preferences   *types.WeatherPreferences   `json:"weather_preferences,omitempty"`
	Notifications *types.NotificationSettings `json:"notification_settings,omitempty"`

	VehicleType *string   `json:"vehicle_type,omitempty" validate:"omitempty,max=50"`
	CommuteDays *[]string `json:"commute_days,omitempty" validate:"omitempty,max=7,dive,weekday"`
}

// --- Handler ---

// RiderHandler manages rider profile CRUD.
type RiderHandler struct {
	repo      RiderRepo
	validator *core.Validator
	logger    *slog.Logger
}

// NewRiderHandler creates a RiderHandler with the provided dependencies.
func NewRiderHandler(repo RiderRepo, v *core.Validator, l *slog.Logger) *RiderHandler {
	if l == nil {
		l = slog.Default()
	}
	return &RiderHandler{
		repo:      repo,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts rider routes on the provided chi.Router.
func (h *RiderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/riders", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Replace)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})
}

// --- Handler Methods ---

// Create handles POST /v1/riders.
//
//  1. Decode and validate the request.
//  2. Apply defaults (enabled, timezone, vehicle type, notification settings).
//  3. Persist via RiderRepo.Create (duplicate email surfaces as 409).
//  4. Return 201 Created with the stored rider.
func (h *RiderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRiderRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	now := time.Now().UTC()

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = defaultTimezone
	}

	vehicleType := req.VehicleType
	if vehicleType == "" {
		vehicleType = defaultVehicleType
	}

	rider := &types.Rider{
		ID:          uuid.New().String(),
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		BackupEmail: req.BackupEmail,
		Enabled:     enabled,
		Timezone:    timezone,
		RideIn:      req.RideIn,
		RideBack:    req.RideBack,
		Locations:   req.Locations,
		VehicleType: vehicleType,
		CommuteDays: req.CommuteDays,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if req.Preferences != nil {
		rider.Preferences = *req.Preferences
	} else {
		rider.Preferences = defaultPreferences()
	}
	if req.Notifications != nil {
		rider.Notifications = *req.Notifications
	} else {
		rider.Notifications = defaultNotifications()
	}

	if err := h.repo.Create(r.Context(), rider); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "rider created",
		"rider_id", rider.ID,
		"enabled", rider.Enabled,
		"locations", len(rider.Locations),
	)

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: rider})
}

// Get handles GET /v1/riders/{id}.
func (h *RiderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"rider ID is required",
			nil,
		))
		return
	}

	rider, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rider})
}

// List handles GET /v1/riders with optional ?enabled= filtering and
// limit/cursor pagination.
func (h *RiderHandler) List(w http.ResponseWriter, r *http.Request) {
	params := db.ListRidersParams{
		Cursor: r.URL.Query().Get("cursor"),
	}

	if enabledStr := r.URL.Query().Get("enabled"); enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"enabled must be true or false",
				err,
			))
			return
		}
		params.Enabled = &enabled
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 100 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"limit must be a number between 1 and 100",
				nil,
			))
			return
		}
		params.Limit = limit
	}

	riders, pageInfo, err := h.repo.List(r.Context(), params)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if riders == nil {
		riders = []*types.Rider{}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: riders,
		Meta: &types.ResponseMeta{
			Pagination: &pageInfo,
		},
	})
}

// Replace handles PUT /v1/riders/{id}: a full replacement of every mutable
// field. Immutable fields (ID, timestamps) are preserved.
func (h *RiderHandler) Replace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"rider ID is required",
			nil,
		))
		return
	}

	var req ReplaceRiderRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	// Fetch first so a missing rider comes back 404, not a silent upsert.
	rider, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	rider.Name = req.Name
	rider.DisplayName = req.DisplayName
	rider.Email = req.Email
	rider.BackupEmail = req.BackupEmail
	rider.Enabled = req.Enabled
	rider.Timezone = req.Timezone
	rider.RideIn = req.RideIn
	rider.RideBack = req.RideBack
	rider.Locations = req.Locations
	rider.Preferences = req.Preferences
	rider.Notifications = req.Notifications
	rider.VehicleType = req.VehicleType
	rider.CommuteDays = req.CommuteDays

	if err := h.repo.Update(r.Context(), rider); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "rider replaced", "rider_id", id)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rider})
}

// Update handles PATCH /v1/riders/{id}: partial updates via pointer fields.
func (h *RiderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"rider ID is required",
			nil,
		))
		return
	}

	var req UpdateRiderRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	rider, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Name != nil {
		rider.Name = *req.Name
	}
	if req.DisplayName != nil {
		rider.DisplayName = *req.DisplayName
	}
	if req.Email != nil {
		rider.Email = *req.Email
	}
	if req.BackupEmail != nil {
		rider.BackupEmail = *req.BackupEmail
	}
	if req.Enabled != nil {
		rider.Enabled = *req.Enabled
	}
	if req.Timezone != nil {
		rider.Timezone = *req.Timezone
	}
	if req.RideIn != nil {
		rider.RideIn = *req.RideIn
	}
	if req.RideBack != nil {
		rider.RideBack = *req.RideBack
	}
	if req.Locations != nil {
		rider.Locations = *req.Locations
	}
	if req.Preferences != nil {
		rider.Preferences = *req.Preferences
	}
	if req.Notifications != nil {
		rider.Notifications = *req.Notifications
	}
	if req.VehicleType != nil {
		rider.VehicleType = *req.VehicleType
	}
	if req.CommuteDays != nil {
		rider.CommuteDays = *req.CommuteDays
	}

	if err := h.repo.Update(r.Context(), rider); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "rider updated", "rider_id", id)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rider})
}

// Delete handles DELETE /v1/riders/{id}: a soft delete so fact history stays
// attributable. Returns 204 No Content.
func (h *RiderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"rider ID is required",
			nil,
		))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "rider deleted", "rider_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// --- Defaults ---

// defaultPreferences matches the comfort limits the renderer assumes when a
// rider never states their own.
func defaultPreferences() types.WeatherPreferences {
	return types.WeatherPreferences{
		MaxRainChance: 30,
		MinTempF:      40,
		MaxWindMPH:    25,
	}
}

// defaultNotifications sends on every commute day, ride or no ride.
func defaultNotifications() types.NotificationSettings {
	return types.NotificationSettings{
		SendMorningOnly:    false,
		SendIfNoRide:       true,
		AdvanceNoticeHours: 1,
	}
}
