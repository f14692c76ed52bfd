package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/auth"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/handler"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/model"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/repository"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/service"
)

const secret = "handler-test-secret"

type api struct {
	t      *testing.T
	server *httptest.Server
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := repository.NewMemory()
	clock := func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	svc := service.NewCampService(store.Camps(), store.Registrations(), service.WithClock(clock))
	h := handler.NewCampHandler(svc, log)
	srv := httptest.NewServer(handler.NewRouter(h, auth.NewVerifier(secret), "*"))
	t.Cleanup(srv.Close)
	return &api{t: t, server: srv}
}

func token(t *testing.T, id string, role model.Role) string {
	t.Helper()
	tok, err := auth.Issue(secret, id, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (a *api) do(method, path, tok string, body any, out any) int {
	a.t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.server.URL+path, rdr)
	require.NoError(a.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

var campBody = map[string]any{
	"title":         "City Blood Drive",
	"venue":         "Main Street Hall",
	"date":          "2030-02-01",
	"start_time":    "09:00",
	"end_time":      "10:00",
	"slot_interval": 30,
	"slot_capacity": 2,
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	var out map[string]string
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health", "", nil, &out))
	assert.Equal(t, "ok", out["status"])
}

func TestRequiresAuth(t *testing.T) {
	a := newAPI(t)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/camps", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/camps", "garbage", nil, nil))
}

func TestFullFlow(t *testing.T) {
	a := newAPI(t)
	org := token(t, "org-1", model.RoleOrganizer)

	var camp model.Camp
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/camps", org, campBody, &camp))
	require.Len(t, camp.Slots, 4)

	var regs []model.Registration
	for _, d := range []string{"d1", "d2", "d3", "d4"} {
		var reg model.Registration
		require.Equal(t, http.StatusCreated,
			a.do(http.MethodPost, "/api/camps/"+camp.ID+"/register", token(t, d, model.RoleDonor), nil, &reg))
		assert.Len(t, reg.Token, 6)
		regs = append(regs, reg)
	}
	assert.Equal(t, "09:00", regs[1].SlotStart)
	assert.Equal(t, "09:30", regs[2].SlotStart)

	d5 := token(t, "d5", model.RoleDonor)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/api/camps/"+camp.ID+"/register", d5, nil, nil))

	d1 := token(t, "d1", model.RoleDonor)
	var cancelled model.Registration
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/registrations/"+regs[0].ID+"/cancel", d1, nil, &cancelled))
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/registrations/"+regs[0].ID+"/cancel", d1, nil, &cancelled))

	var late model.Registration
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/camps/"+camp.ID+"/register", d5, nil, &late))
	assert.Equal(t, "09:00", late.SlotStart)

	var mine []model.Registration
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/registrations", d1, nil, &mine))
	assert.Empty(t, mine)
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/registrations?include=cancelled", d1, nil, &mine))
	assert.Len(t, mine, 1)

	var campRegs []model.Registration
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/camps/"+camp.ID+"/registrations", org, nil, &campRegs))
	assert.Len(t, campRegs, 5)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/camps/"+camp.ID+"/registrations", d1, nil, nil))

	var dash model.Dashboard
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/camps/summary", org, nil, &dash))
	require.Len(t, dash.Camps, 1)
	assert.Equal(t, 4, dash.Camps[0].ActiveRegistrations)
	assert.InDelta(t, 1.0, dash.Camps[0].FillRate, 1e-9)
	assert.Equal(t, 1, dash.TotalCamps)
	assert.Equal(t, 4, dash.ActiveRegistrations)
	assert.InDelta(t, 1.0, dash.AverageFillRate, 1e-9)

	var seen model.Camp
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/camps/"+camp.ID, d5, nil, &seen))
	assert.Equal(t, "d5", seen.Slots[0].DonorID)
	assert.Empty(t, seen.Slots[1].DonorID)
	assert.True(t, seen.Slots[1].Booked)

	var listed []model.Camp
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/camps", d1, nil, &listed))
	assert.Len(t, listed, 1)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodDelete, "/api/camps/"+camp.ID, d1, nil, nil))
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, "/api/camps/"+camp.ID, org, nil, nil))
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/camps/"+camp.ID, org, nil, nil))
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/api/registrations/"+late.ID+"/cancel", d5, nil, nil))
}

func TestCreateCamp_Rejections(t *testing.T) {
	a := newAPI(t)
	org := token(t, "org-1", model.RoleOrganizer)

	bad := map[string]any{}
	for k, v := range campBody {
		bad[k] = v
	}
	bad["end_time"] = "08:00"
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/camps", org, bad, nil))

	bad["end_time"] = "10:00"
	bad["slot_capacity"] = 0
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/camps", org, bad, nil))

	bad["slot_capacity"] = 2
	bad["surprise"] = true
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/camps", org, bad, nil))

	donorTok := token(t, "d1", model.RoleDonor)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/api/camps", donorTok, campBody, nil))
}

func TestUpdateCamp(t *testing.T) {
	a := newAPI(t)
	org := token(t, "org-1", model.RoleOrganizer)
	var camp model.Camp
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/camps", org, campBody, &camp))

	var updated model.Camp
	require.Equal(t, http.StatusOK,
		a.do(http.MethodPatch, "/api/camps/"+camp.ID, org, map[string]any{"title": "Winter Drive"}, &updated))
	assert.Equal(t, "Winter Drive", updated.Title)

	// Slot shape is immutable once slots exist.
	assert.Equal(t, http.StatusBadRequest,
		a.do(http.MethodPatch, "/api/camps/"+camp.ID, org, map[string]any{"slot_capacity": 9}, nil))

	other := token(t, "org-2", model.RoleOrganizer)
	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodPatch, "/api/camps/"+camp.ID, other, map[string]any{"title": "Mine now"}, nil))
}

func TestCORSPreflight(t *testing.T) {
	a := newAPI(t)
	req, err := http.NewRequest(http.MethodOptions, a.server.URL+"/api/camps", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
