package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridecast/internal/core"
	"ridecast/internal/db"
	"ridecast/internal/types"
)

type fakeRiderRepo struct {
	riders map[string]*types.Rider

	createErr error
	updateErr error

	lastList db.ListRidersParams
	listErr  error
	pageInfo types.PageInfo
}

func newFakeRiderRepo() *fakeRiderRepo {
	return &fakeRiderRepo{riders: map[string]*types.Rider{}}
}

func (f *fakeRiderRepo) Create(_ context.Context, rider *types.Rider) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.riders[rider.ID] = rider
	return nil
}

func (f *fakeRiderRepo) GetByID(_ context.Context, id string) (*types.Rider, error) {
	rider, ok := f.riders[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundRider, "rider not found", nil)
	}
	return rider, nil
}

func (f *fakeRiderRepo) List(_ context.Context, params db.ListRidersParams) ([]*types.Rider, types.PageInfo, error) {
	f.lastList = params
	if f.listErr != nil {
		return nil, types.PageInfo{}, f.listErr
	}
	var out []*types.Rider
	for _, r := range f.riders {
		if params.Enabled != nil && r.Enabled != *params.Enabled {
			continue
		}
		out = append(out, r)
	}
	return out, f.pageInfo, nil
}

func (f *fakeRiderRepo) Update(_ context.Context, rider *types.Rider) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.riders[rider.ID] = rider
	return nil
}

func (f *fakeRiderRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.riders[id]; !ok {
		return types.NewAppError(types.ErrCodeNotFoundRider, "rider not found", nil)
	}
	delete(f.riders, id)
	return nil
}

func newTestHandler(repo RiderRepo) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewRiderHandler(repo, core.NewValidator(logger), logger)

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func storedRider(repo *fakeRiderRepo) *types.Rider {
	rider := &types.Rider{
		ID:       "rider-1",
		Name:     "Alex",
		Email:    "alex@example.com",
		Enabled:  true,
		Timezone: "America/New_York",
		RideIn:   types.HourWindow{StartHour: 7, EndHour: 9},
		RideBack: types.HourWindow{StartHour: 17, EndHour: 19},
		Locations: []types.Location{
			{Name: "Home", Lat: 40.7, Lon: -74.0},
		},
		Preferences:   types.WeatherPreferences{MaxRainChance: 30, MinTempF: 40, MaxWindMPH: 25},
		Notifications: types.NotificationSettings{SendIfNoRide: true, AdvanceNoticeHours: 1},
		VehicleType:   "motorcycle",
	}
	repo.riders[rider.ID] = rider
	return rider
}

const validCreateBody = `{
	"name": "Alex",
	"email": "alex@example.com",
	"ride_in_hours": {"start_hour": 7, "end_hour": 9},
	"ride_back_hours": {"start_hour": 17, "end_hour": 19},
	"locations": [{"name": "Home", "lat": 40.7, "lon": -74.0}]
}`

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeRider(t *testing.T, rec *httptest.ResponseRecorder) *types.Rider {
	t.Helper()
	var resp struct {
		Data *types.Rider `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data)
	return resp.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestCreateRider_AppliesDefaults(t *testing.T) {
	repo := newFakeRiderRepo()
	handler := newTestHandler(repo)

	rec := doRequest(t, handler, http.MethodPost, "/riders", validCreateBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rider := decodeRider(t, rec)
	assert.NotEmpty(t, rider.ID)
	assert.True(t, rider.Enabled)
	assert.Equal(t, "America/New_York", rider.Timezone)
	assert.Equal(t, "motorcycle", rider.VehicleType)
	assert.Equal(t, 30, rider.Preferences.MaxRainChance)
	assert.True(t, rider.Notifications.SendIfNoRide)
	assert.False(t, rider.CreatedAt.IsZero())

	assert.Contains(t, repo.riders, rider.ID)
}

func TestCreateRider_HonorsExplicitFields(t *testing.T) {
	repo := newFakeRiderRepo()
	handler := newTestHandler(repo)

	body := `{
		"name": "Alex",
		"email": "alex@example.com",
		"enabled": false,
		"timezone": "Europe/London",
		"vehicle_type": "scooter",
		"ride_in_hours": {"start_hour": 7, "end_hour": 9},
		"ride_back_hours": {"start_hour": 17, "end_hour": 19},
		"locations": [{"name": "Home", "lat": 51.5, "lon": -0.1}],
		"weather_preferences": {"max_rain_chance": 10, "min_temp_f": 50, "max_wind_mph": 15},
		"commute_days": ["monday", "wednesday"]
	}`

	rec := doRequest(t, handler, http.MethodPost, "/riders", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rider := decodeRider(t, rec)
	assert.False(t, rider.Enabled)
	assert.Equal(t, "Europe/London", rider.Timezone)
	assert.Equal(t, "scooter", rider.VehicleType)
	assert.Equal(t, 10, rider.Preferences.MaxRainChance)
	assert.Equal(t, []string{"monday", "wednesday"}, rider.CommuteDays)
}

func TestCreateRider_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing name",
			body: `{"email": "a@b.com", "locations": [{"name": "Home", "lat": 0, "lon": 0}]}`,
		},
		{
			name: "invalid email",
			body: `{"name": "Alex", "email": "not-an-email", "locations": [{"name": "Home", "lat": 0, "lon": 0}]}`,
		},
		{
			name: "no locations",
			body: `{"name": "Alex", "email": "a@b.com", "locations": []}`,
		},
		{
			name: "latitude out of range",
			body: `{"name": "Alex", "email": "a@b.com", "locations": [{"name": "Home", "lat": 91, "lon": 0}]}`,
		},
		{
			name: "inverted hour window",
			body: `{"name": "Alex", "email": "a@b.com", "ride_in_hours": {"start_hour": 9, "end_hour": 7}, "locations": [{"name": "Home", "lat": 0, "lon": 0}]}`,
		},
		{
			name: "invalid commute day",
			body: `{"name": "Alex", "email": "a@b.com", "commute_days": ["someday"], "locations": [{"name": "Home", "lat": 0, "lon": 0}]}`,
		},
		{
			name: "empty body",
			body: `{}`,
		},
		{
			name: "unknown field",
			body: `{"name": "Alex", "email": "a@b.com", "surprise": true, "locations": [{"name": "Home", "lat": 0, "lon": 0}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRiderRepo()
			rec := doRequest(t, newTestHandler(repo), http.MethodPost, "/riders", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, repo.riders)
		})
	}
}

func TestCreateRider_DuplicateEmailConflict(t *testing.T) {
	repo := newFakeRiderRepo()
	repo.createErr = types.NewAppError(types.ErrCodeConflictEmail, "email already registered", nil)

	rec := doRequest(t, newTestHandler(repo), http.MethodPost, "/riders", validCreateBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(types.ErrCodeConflictEmail), errorCode(t, rec))
}

func TestGetRider(t *testing.T) {
	repo := newFakeRiderRepo()
	rider := storedRider(repo)
	handler := newTestHandler(repo)

	rec := doRequest(t, handler, http.MethodGet, "/riders/"+rider.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, rider.ID, decodeRider(t, rec).ID)
}

func TestGetRider_NotFound(t *testing.T) {
	repo := newFakeRiderRepo()
	rec := doRequest(t, newTestHandler(repo), http.MethodGet, "/riders/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundRider), errorCode(t, rec))
}

func TestListRiders(t *testing.T) {
	repo := newFakeRiderRepo()
	storedRider(repo)
	repo.pageInfo = types.PageInfo{HasMore: true, NextCursor: "abc"}

	rec := doRequest(t, newTestHandler(repo), http.MethodGet, "/riders?enabled=true&limit=25&cursor=xyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, repo.lastList.Enabled)
	assert.True(t, *repo.lastList.Enabled)
	assert.Equal(t, 25, repo.lastList.Limit)
	assert.Equal(t, "xyz", repo.lastList.Cursor)

	var resp struct {
		Data []*types.Rider      `json:"data"`
		Meta *types.ResponseMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
	require.NotNil(t, resp.Meta)
	require.NotNil(t, resp.Meta.Pagination)
	assert.True(t, resp.Meta.Pagination.HasMore)
	assert.Equal(t, "abc", resp.Meta.Pagination.NextCursor)
}

func TestListRiders_EmptyRosterReturnsEmptyArray(t *testing.T) {
	rec := doRequest(t, newTestHandler(newFakeRiderRepo()), http.MethodGet, "/riders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestListRiders_InvalidQueryParams(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "bad enabled", path: "/riders?enabled=maybe"},
		{name: "bad limit", path: "/riders?limit=abc"},
		{name: "limit too small", path: "/riders?limit=0"},
		{name: "limit too large", path: "/riders?limit=500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, newTestHandler(newFakeRiderRepo()), http.MethodGet, tt.path, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestReplaceRider(t *testing.T) {
	repo := newFakeRiderRepo()
	rider := storedRider(repo)
	handler := newTestHandler(repo)

	body := `{
		"name": "Alex Updated",
		"email": "new@example.com",
		"enabled": false,
		"timezone": "America/Chicago",
		"ride_in_hours": {"start_hour": 6, "end_hour": 8},
		"ride_back_hours": {"start_hour": 16, "end_hour": 18},
		"locations": [{"name": "New Home", "lat": 41.9, "lon": -87.6}],
		"weather_preferences": {"max_rain_chance": 20, "min_temp_f": 45, "max_wind_mph": 20},
		"notification_settings": {"send_morning_only": true, "send_if_no_ride": false, "advance_notice_hours": 2}
	}`

	rec := doRequest(t, handler, http.MethodPut, "/riders/"+rider.ID, body)
	require.Equal(t, http.StatusOK, rec.Code)

	updated := decodeRider(t, rec)
	assert.Equal(t, rider.ID, updated.ID)
	assert.Equal(t, "Alex Updated", updated.Name)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.False(t, updated.Enabled)
	assert.Equal(t, "America/Chicago", updated.Timezone)
	assert.Equal(t, types.HourWindow{StartHour: 6, EndHour: 8}, updated.RideIn)
	assert.True(t, updated.Notifications.SendMorningOnly)
	// PUT is a full replacement, so an omitted display name clears it.
	assert.Empty(t, updated.DisplayName)
}

func TestReplaceRider_NotFound(t *testing.T) {
	repo := newFakeRiderRepo()
	body := `{
		"name": "Alex",
		"email": "a@b.com",
		"enabled": true,
		"timezone": "UTC",
		"ride_in_hours": {"start_hour": 7, "end_hour": 9},
		"ride_back_hours": {"start_hour": 17, "end_hour": 19},
		"locations": [{"name": "Home", "lat": 0, "lon": 0}],
		"weather_preferences": {"max_rain_chance": 30, "min_temp_f": 40, "max_wind_mph": 25},
		"notification_settings": {"send_morning_only": false, "send_if_no_ride": true, "advance_notice_hours": 1}
	}`

	rec := doRequest(t, newTestHandler(repo), http.MethodPut, "/riders/missing", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRider_PartialPatch(t *testing.T) {
	repo := newFakeRiderRepo()
	rider := storedRider(repo)
	handler := newTestHandler(repo)

	rec := doRequest(t, handler, http.MethodPatch, "/riders/"+rider.ID, `{"enabled": false, "display_name": "AR"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	updated := decodeRider(t, rec)
	assert.False(t, updated.Enabled)
	assert.Equal(t, "AR", updated.DisplayName)
	// Untouched fields keep their values.
	assert.Equal(t, "Alex", updated.Name)
	assert.Equal(t, "alex@example.com", updated.Email)
	assert.Equal(t, types.HourWindow{StartHour: 7, EndHour: 9}, updated.RideIn)
}

func TestUpdateRider_InvalidPatchField(t *testing.T) {
	repo := newFakeRiderRepo()
	rider := storedRider(repo)

	rec := doRequest(t, newTestHandler(repo), http.MethodPatch, "/riders/"+rider.ID, `{"email": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "alex@example.com", repo.riders[rider.ID].Email)
}

func TestUpdateRider_NotFound(t *testing.T) {
	rec := doRequest(t, newTestHandler(newFakeRiderRepo()), http.MethodPatch, "/riders/missing", `{"enabled": false}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteRider(t *testing.T) {
	repo := newFakeRiderRepo()
	rider := storedRider(repo)

	rec := doRequest(t, newTestHandler(repo), http.MethodDelete, "/riders/"+rider.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.NotContains(t, repo.riders, rider.ID)
}

func TestDeleteRider_NotFound(t *testing.T) {
	rec := doRequest(t, newTestHandler(newFakeRiderRepo()), http.MethodDelete, "/riders/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRider_RepoFailureIsOpaque500(t *testing.T) {
	repo := newFakeRiderRepo()
	repo.createErr = errors.New("connection reset")

	rec := doRequest(t, newTestHandler(repo), http.MethodPost, "/riders", validCreateBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}
