package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.fiblab.net/sim/streetcover/geo"
	"git.fiblab.net/sim/streetcover/planner"
)

func newTestServer(streets []*planner.StreetSegment) *CoverageServer {
	gin.SetMode(gin.TestMode)
	s := NewCoverageServer(nil)
	s.datasets.Store("test", &Dataset{
		ID:      "test",
		mu:      xsync.NewRBMutex(),
		streets: streets,
	})
	return s
}

func testStreets(completed bool) []*planner.StreetSegment {
	return []*planner.StreetSegment{{
		ID:   "s1",
		Name: "Main Street",
		Path: []geo.LatLng{
			{Lat: 0, Lon: 0},
			{Lat: 0.008983, Lon: 0},
		},
		Completed: completed,
		Source:    planner.SOURCE_MANUAL,
	}}
}

func TestPlanEndpoint(t *testing.T) {
	s := newTestServer(testStreets(false))
	engine := s.Engine()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/routes/plan",
		strings.NewReader(`{"datasetId":"test","home":{"lat":0,"lon":0},"targetKm":1.6}`))
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"s1"`)
	assert.Contains(t, w.Body.String(), "Main Street")
}

func TestPlanEndpointInfeasible(t *testing.T) {
	s := newTestServer(testStreets(true))
	engine := s.Engine()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/routes/plan",
		strings.NewReader(`{"datasetId":"test","home":{"lat":0,"lon":0},"targetKm":1.6}`))
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPlanEndpointUnknownDataset(t *testing.T) {
	s := newTestServer(testStreets(false))
	engine := s.Engine()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/routes/plan",
		strings.NewReader(`{"datasetId":"nope","home":{"lat":0,"lon":0},"targetKm":1.6}`))
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompleteAndExportFlow(t *testing.T) {
	s := newTestServer(testStreets(false))
	engine := s.Engine()

	// 规划并取出路线id
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/routes/plan",
		strings.NewReader(`{"datasetId":"test","home":{"lat":0,"lon":0},"targetKm":1.6}`))
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var routeID string
	s.routes.Range(func(id string, _ *planner.SuggestedRoute) bool {
		routeID = id
		return false
	})
	require.NotEmpty(t, routeID)

	// GPX导出
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/routes/"+routeID+"/gpx", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<trkpt")

	// 外部地图链接
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/routes/"+routeID+"/links", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "google.com/maps")

	// 标记完成后再规划不可行
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/datasets/test/streets/s1/complete",
		strings.NewReader(`{"completed":true}`)))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/routes/plan",
		strings.NewReader(`{"datasetId":"test","home":{"lat":0,"lon":0},"targetKm":1.6}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAddStreetEndpoint(t *testing.T) {
	s := newTestServer(testStreets(false))
	engine := s.Engine()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/datasets/test/streets",
		strings.NewReader(`{"name":"New Lane","path":[{"lat":0,"lon":0.001},{"lat":0,"lon":0.002}]}`))
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"manual"`)

	ds, _ := s.datasets.Load("test")
	assert.Len(t, ds.Streets(), 2)
}
