package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/openlims/sample-storage/internal/config"
	"github.com/openlims/sample-storage/internal/handler"
	"github.com/openlims/sample-storage/internal/router"
	"github.com/openlims/sample-storage/internal/service"
	"github.com/openlims/sample-storage/internal/store/memory"
)

type testValidator struct {
	validate *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

type api struct {
	e       *echo.Echo
	storage *service.StorageService
}

// newAPI wires the full HTTP surface over a memory store with auth
// disabled and no rate limiter, then seeds the standard lab layout.
func newAPI(t *testing.T) *api {
	t.Helper()
	st := memory.New()
	locations := service.NewLocationService(st)
	storage := service.NewStorageService(st, config.DisposalPolicy{
		Reasons: []string{"Expired", "Contaminated"},
		Methods: []string{"Biohazard Autoclave", "Incineration"},
	})
	storage.Audit = nil

	e := echo.New()
	e.Validator = &testValidator{validate: validator.New()}
	router.RegisterRoutes(e)
	router.RegisterStorage(e, handler.NewLocationHandler(locations), handler.NewStorageHandler(storage), "", nil)

	a := &api{e: e, storage: storage}
	a.seed(t, locations)
	return a
}

func (a *api) seed(t *testing.T, locations *service.LocationService) {
	t.Helper()
	ctx := context.Background()
	mk := func(typ, code, name string, parent *uint64) uint64 {
		n, err := locations.Create(ctx, service.CreateLocationInput{Type: typ, Code: code, Name: name, ParentID: parent})
		require.NoError(t, err)
		return n.ID
	}
	room := mk("room", "LAB-1", "Main Laboratory", nil)
	device := mk("device", "FRZ-01", "Freezer Unit 1", &room)
	shelf := mk("shelf", "SH-A", "Shelf-A", &device)
	mk("rack", "RK-1", "Rack R1", &shelf) // id 4
	mk("rack", "RK-2", "Rack R2", &shelf) // id 5
}

func (a *api) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var payload map[string]interface{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec.Code, payload
}

func (a *api) doList(t *testing.T, path string) (int, []map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	var payload []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return rec.Code, payload
}

func (a *api) registerItem(t *testing.T, accession string) {
	t.Helper()
	code, body := a.do(t, http.MethodPost, "/storage/sample-items",
		fmt.Sprintf(`{"accessionNumber":%q,"specimenType":"serum"}`, accession))
	require.Equal(t, http.StatusCreated, code)
	require.Contains(t, body, "sampleItemId")
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestAssignEndpointContract(t *testing.T) {
	a := newAPI(t)
	a.registerItem(t, "SI-1")
	a.registerItem(t, "SI-2")

	code, body := a.do(t, http.MethodPost, "/storage/sample-items/assign",
		`{"sampleItemId":"SI-1","locationId":4,"locationType":"rack","positionCoordinate":"A5"}`)
	require.Equal(t, http.StatusCreated, code)
	require.Contains(t, body, "assignmentId")
	require.Equal(t, "Main Laboratory > Freezer Unit 1 > Shelf-A > Rack R1 > A5", body["hierarchicalPath"])
	require.NotContains(t, body, "error")

	// The losing request carries "error" and no success fields.
	code, body = a.do(t, http.MethodPost, "/storage/sample-items/assign",
		`{"sampleItemId":"SI-2","locationId":4,"locationType":"rack","positionCoordinate":"A5"}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body, "error")
	require.NotContains(t, body, "assignmentId")

	// Unknown item maps to 404.
	code, body = a.do(t, http.MethodPost, "/storage/sample-items/assign",
		`{"sampleItemId":"nope","locationId":4,"locationType":"rack","positionCoordinate":"B9"}`)
	require.Equal(t, http.StatusNotFound, code)
	require.Contains(t, body, "error")

	// Missing required fields are rejected by validation before any write.
	code, body = a.do(t, http.MethodPost, "/storage/sample-items/assign", `{"locationId":4}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body, "error")
}

func TestAssignRejectsOversizedNotes(t *testing.T) {
	a := newAPI(t)
	a.registerItem(t, "SI-1")

	// The notes column is VARCHAR(512); anything longer must fail
	// validation up front instead of surfacing as a database error.
	long := strings.Repeat("n", 600)
	code, body := a.do(t, http.MethodPost, "/storage/sample-items/assign",
		fmt.Sprintf(`{"sampleItemId":"SI-1","locationId":4,"locationType":"rack","positionCoordinate":"A5","notes":%q}`, long))
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body, "error")
	require.NotContains(t, body, "assignmentId")

	// The slot stays free for a well-formed retry.
	code, _ = a.do(t, http.MethodPost, "/storage/sample-items/assign",
		`{"sampleItemId":"SI-1","locationId":4,"locationType":"rack","positionCoordinate":"A5"}`)
	require.Equal(t, http.StatusCreated, code)
}

func TestMoveAndHistoryEndpoints(t *testing.T) {
	a := newAPI(t)
	a.registerItem(t, "SI-1")
	a.do(t, http.MethodPost, "/storage/sample-items/assign",
		`{"sampleItemId":"SI-1","locationId":4,"locationType":"rack","positionCoordinate":"A5"}`)

	code, body := a.do(t, http.MethodPost, "/storage/sample-items/move",
		`{"sampleItemId":"SI-1","locationId":5,"locationType":"rack","positionCoordinate":"B1","reason":"Test move"}`)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "movementId")
	require.Equal(t, "Main Laboratory > Freezer Unit 1 > Shelf-A > Rack R1 > A5", body["previousLocation"])
	require.Equal(t, "Main Laboratory > Freezer Unit 1 > Shelf-A > Rack R2 > B1", body["newLocation"])

	code, history := a.doList(t, "/storage/sample-items/SI-1/movements")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, history, 2)
	require.Equal(t, "Test move", history[0]["reason"])
}

func TestDisposeEndpointRepeatContract(t *testing.T) {
	a := newAPI(t)
	a.registerItem(t, "SI-1")
	a.do(t, http.MethodPost, "/storage/sample-items/assign",
		`{"sampleItemId":"SI-1","locationId":4,"locationType":"rack","positionCoordinate":"A5"}`)

	code, body := a.do(t, http.MethodPost, "/storage/sample-items/dispose",
		`{"sampleItemId":"SI-1","reason":"Expired","method":"Biohazard Autoclave"}`)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "disposalId")
	require.Contains(t, body, "previousLocation")

	code, body = a.do(t, http.MethodPost, "/storage/sample-items/dispose",
		`{"sampleItemId":"SI-1","reason":"Expired","method":"Biohazard Autoclave"}`)
	require.Equal(t, http.StatusBadRequest, code)
	msg, ok := body["message"].(string)
	require.True(t, ok)
	require.Contains(t, msg, "already disposed")
	require.NotContains(t, body, "disposalId")

	// Unknown reason is a validation failure, not a repeat.
	a.registerItem(t, "SI-2")
	code, body = a.do(t, http.MethodPost, "/storage/sample-items/dispose",
		`{"sampleItemId":"SI-2","reason":"Bored","method":"Incineration"}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body, "error")
}

func TestMetricsEndpointReflectsWrites(t *testing.T) {
	a := newAPI(t)
	a.registerItem(t, "SI-1")
	a.do(t, http.MethodPost, "/storage/sample-items/assign",
		`{"sampleItemId":"SI-1","locationId":4,"locationType":"rack","positionCoordinate":"A5"}`)

	code, body := a.do(t, http.MethodGet, "/storage/metrics", "")
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, body["stored"])
	require.EqualValues(t, 0, body["disposed"])

	a.do(t, http.MethodPost, "/storage/sample-items/dispose",
		`{"sampleItemId":"SI-1","reason":"Expired","method":"Incineration"}`)

	code, body = a.do(t, http.MethodGet, "/storage/metrics", "")
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 0, body["stored"])
	require.EqualValues(t, 1, body["disposed"])
	locations, ok := body["locations"].(map[string]interface{})
	require.True(t, ok)
	require.EqualValues(t, 2, locations["racks"])
}

func TestLocationEndpoints(t *testing.T) {
	a := newAPI(t)

	code, body := a.do(t, http.MethodPost, "/storage/boxes",
		`{"code":"BX-1","name":"Box One","parentId":4}`)
	require.Equal(t, http.StatusCreated, code)
	require.Contains(t, body, "id")
	require.Equal(t, "box", body["type"])

	code, list := a.doList(t, "/storage/racks?device=2")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list, 2)

	code, list = a.doList(t, "/storage/racks?search=r1")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list, 1)
	require.Equal(t, "Rack R1", list[0]["name"])

	code, body = a.do(t, http.MethodGet, "/storage/shelves/3/can-delete", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, body["canDelete"])

	code, body = a.do(t, http.MethodDelete, "/storage/shelves/3", "")
	require.Equal(t, http.StatusConflict, code)
	require.Contains(t, body, "error")

	code, _ = a.do(t, http.MethodGet, "/storage/drawers", "")
	require.Equal(t, http.StatusNotFound, code)

	code, list = a.doList(t, "/storage/locations/search?q=freezer")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list, 1)
	require.Equal(t, "Freezer Unit 1", list[0]["name"])
}

func TestGetLocationByKind(t *testing.T) {
	a := newAPI(t)

	code, body := a.do(t, http.MethodGet, "/storage/shelves/3", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Shelf-A", body["name"])
	require.Equal(t, "shelf", body["type"])
	require.EqualValues(t, 2, body["parentId"])

	// The shelf exists, but not under /racks.
	code, body = a.do(t, http.MethodGet, "/storage/racks/3", "")
	require.Equal(t, http.StatusNotFound, code)
	require.Contains(t, body, "error")

	code, body = a.do(t, http.MethodGet, "/storage/racks/999", "")
	require.Equal(t, http.StatusNotFound, code)
	require.Contains(t, body, "error")
}

func TestPatchAssignment(t *testing.T) {
	a := newAPI(t)
	a.registerItem(t, "SI-1")
	a.do(t, http.MethodPost, "/storage/sample-items/assign",
		`{"sampleItemId":"SI-1","locationId":4,"locationType":"rack","positionCoordinate":"A5"}`)

	code, body := a.do(t, http.MethodPatch, "/storage/sample-items/SI-1",
		`{"positionCoordinate":"A7","notes":"relabelled"}`)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "assignmentId")
	require.True(t, strings.HasSuffix(body["hierarchicalPath"].(string), "> A7"))
}
