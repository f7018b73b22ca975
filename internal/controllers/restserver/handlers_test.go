package restserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/info3g/hikstar-celery/internal/database"
	"github.com/info3g/hikstar-celery/internal/store"
	"github.com/info3g/hikstar-celery/pkg/config"
	"github.com/info3g/hikstar-celery/pkg/responseformat"
)

func newTestHandler(t *testing.T, sc config.ServerData) http.Handler {
	t.Helper()
	logger := zap.NewNop().Sugar()

	c := database.NewClient(config.StorageData{
		Backend: config.BackendSQLite,
		SQLite:  &config.SQLiteData{Path: ":memory:"},
	}, logger)
	require.NoError(t, c.Connect())
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.Migrate())

	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, sc, store.New(c.DB, logger), logger)
	require.NoError(t, err)
	return ctrl.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const activityBody = `{"name":"hiking","flat_pace":4000,"ascent_pace":300,"descent_pace":500,
	"distance":[5,10,20,40],"dev":[300,600,1200,2400]}`

// seedAPI creates an activity, a section and a trail using both through the API
func seedAPI(t *testing.T, h http.Handler) (activityID, sectionID, trailID int64) {
	t.Helper()

	rec := do(t, h, http.MethodPost, "/api/admin/activities", activityBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	activityID = decode[activityResponse](t, rec).Activity.ID

	rec = do(t, h, http.MethodPost, "/api/admin/trail-sections",
		fmt.Sprintf(`{"name":"ridge","geometry":[[0,0],[3,4]],"activities":[{"activity":%d}]}`, activityID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sectionID = decode[store.SaveResult](t, rec).ID

	rec = do(t, h, http.MethodPost, "/api/admin/trails", fmt.Sprintf(`{
		"name": "Lac des Castors",
		"total_length": 10000, "height_positive": 600, "height_negative": -500,
		"activities": [{"activity": %d}],
		"events": [{"trailsection": %d, "start_position": 0, "end_position": 1}],
		"images": [{"image_type": "banner", "image": "banner.jpg"}, {"image": "ignored.jpg"}]
	}`, activityID, sectionID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	trailID = decode[store.SaveResult](t, rec).ID

	return activityID, sectionID, trailID
}

func TestTrailLifecycle(t *testing.T) {
	h := newTestHandler(t, config.ServerData{})
	_, _, trailID := seedAPI(t, h)

	rec := do(t, h, http.MethodGet, fmt.Sprintf("/api/trails/%d/activities", trailID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[store.TrailMetrics](t, rec)
	require.Len(t, m.Activities, 1)
	assert.Equal(t, "5h45", m.Activities[0].DurationLabel)
	assert.Equal(t, "Advanced", m.Activities[0].DifficultyLabel)
	assert.Equal(t, "Advanced", m.Summary.Difficulty)

	rec = do(t, h, http.MethodPost, fmt.Sprintf("/api/trails/%d/recompute", trailID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/api/trails/%d", trailID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[store.TrailDetail](t, rec)
	require.Len(t, detail.Activities, 1)
	require.Len(t, detail.Images, 1)
	require.Len(t, detail.Events, 1)
	assert.Empty(t, detail.Steps)

	// a reference by id alone keeps the child
	rec = do(t, h, http.MethodPut, fmt.Sprintf("/api/admin/trails/%d", trailID), fmt.Sprintf(
		`{"name":"Lac des Castors","activities":[{"id":%d}],"images":[{"id":%d,"image_type":"banner"}]}`,
		detail.Activities[0].ID, detail.Images[0].ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[store.SaveResult](t, rec)
	assert.Equal(t, []int64{detail.Activities[0].ID}, res.Changes["trail_activity"].Kept)
	assert.Empty(t, res.Changes["trail_activity"].Deleted)

	rec = do(t, h, http.MethodPut, fmt.Sprintf("/api/admin/trails/%d", trailID), `{"name":"renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res = decode[store.SaveResult](t, rec)
	assert.Len(t, res.Changes["trail_activity"].Deleted, 1)
	assert.Len(t, res.Changes["trail_image"].Kept, 1)

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/api/trails/%d", trailID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail = decode[store.TrailDetail](t, rec)
	assert.Equal(t, "renamed", detail.Name)
	assert.Empty(t, detail.Activities)
	assert.Len(t, detail.Images, 1)

	rec = do(t, h, http.MethodDelete, fmt.Sprintf("/api/admin/trails/%d", trailID), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/api/trails/%d", trailID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGraphEndpoints(t *testing.T) {
	h := newTestHandler(t, config.ServerData{})
	_, sectionID, _ := seedAPI(t, h)

	rec := do(t, h, http.MethodPost, "/api/admin/trail-sections", `{"name":"far","geometry":[[10,10],[20,20]]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/trail-sections/graph", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Edges map[string]json.RawMessage `json:"edges"`
		Nodes map[string]json.RawMessage `json:"nodes"`
	}](t, rec)
	assert.Len(t, body.Edges, 2)
	assert.Len(t, body.Nodes, 4)
	assert.Contains(t, body.Edges, fmt.Sprint(sectionID))

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/api/trail-sections/graph?ids=%d", sectionID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body.Edges = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Edges, 1)

	rec = do(t, h, http.MethodGet, "/api/trail-sections/graph/components", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[componentsResponse](t, rec).Count)
}

func TestSectionAdmin(t *testing.T) {
	h := newTestHandler(t, config.ServerData{})
	activityID, sectionID, _ := seedAPI(t, h)

	rec := do(t, h, http.MethodPost, "/api/admin/trail-sections", `{"name":"copy","geometry":[[0,0],[3,4]]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	copyID := decode[store.SaveResult](t, rec).ID

	rec = do(t, h, http.MethodPost, "/api/admin/trail-sections/bulk-update",
		fmt.Sprintf(`{"ids":[%d,%d],"activity_ids":[%d]}`, sectionID, copyID, activityID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bulk := decode[bulkResponse](t, rec)
	assert.Len(t, bulk.Sections, 2)
	assert.Len(t, bulk.Sections[copyID].Created, 1)

	rec = do(t, h, http.MethodPost, "/api/admin/trail-sections/merge-duplicates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{copyID}, decode[mergeResponse](t, rec).Deleted)

	rec = do(t, h, http.MethodPut, fmt.Sprintf("/api/admin/trail-sections/%d", sectionID),
		`{"name":"ridge","geometry":[[0,0],[3,4],[3,8]],"valid":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestActivityAndLocationAdmin(t *testing.T) {
	h := newTestHandler(t, config.ServerData{})
	activityID, _, _ := seedAPI(t, h)

	rec := do(t, h, http.MethodPut, fmt.Sprintf("/api/admin/activities/%d", activityID),
		`{"name":"hiking","flat_pace":5000,"ascent_pace":600,"descent_pace":1000,"distance":[5,10,20,40],"dev":[300,600,1200,2400]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[activityResponse](t, rec).Recomputed)

	rec = do(t, h, http.MethodGet, "/api/activities", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]database.Activity](t, rec), 1)

	rec = do(t, h, http.MethodPost, "/api/admin/locations",
		`{"name":"Mont-Royal","contacts":[{"type":"phone","value":"514-555-0100"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	locationID := decode[store.SaveResult](t, rec).ID

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/api/locations/%d", locationID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[store.LocationDetail](t, rec).Contacts, 1)

	rec = do(t, h, http.MethodPost, "/api/admin/recompute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[countResponse](t, rec).Count)
}

func TestErrorMapping(t *testing.T) {
	h := newTestHandler(t, config.ServerData{})
	_, _, trailID := seedAPI(t, h)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/admin/trails", `{"name":`, http.StatusBadRequest},
		{"validation", http.MethodPost, "/api/admin/trails", `{}`, http.StatusBadRequest},
		{"unknown parent", http.MethodPut, "/api/admin/trails/404", `{"name":"x"}`, http.StatusNotFound},
		{"unknown section", http.MethodPost, "/api/admin/trails",
			`{"name":"x","events":[{"trailsection":404,"end_position":1}]}`, http.StatusBadRequest},
		{"unknown image", http.MethodPut, fmt.Sprintf("/api/admin/trails/%d", trailID),
			`{"name":"x","images":[{"id":404,"image_type":"banner"}]}`, http.StatusUnprocessableEntity},
		{"one point geometry", http.MethodPost, "/api/admin/trail-sections",
			`{"name":"dot","geometry":[[1,1]]}`, http.StatusUnprocessableEntity},
		{"duplicate activity", http.MethodPost, "/api/admin/activities", activityBody, http.StatusConflict},
		{"bad ids", http.MethodGet, "/api/trail-sections/graph?ids=1,abc", "", http.StatusBadRequest},
		{"unknown trail metrics", http.MethodGet, "/api/trails/404/activities", "", http.StatusNotFound},
		{"empty bulk", http.MethodPost, "/api/admin/trail-sections/bulk-update", `{"ids":[]}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestHandler(t, config.ServerData{})

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	do(t, h, http.MethodGet, "/api/activities", "")
	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/activities"`)
}

func TestCORS(t *testing.T) {
	h := newTestHandler(t, config.ServerData{EnableCORS: true})

	req := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
	req.Header.Set("Origin", "https://example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	h = newTestHandler(t, config.ServerData{})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGraphMsgPack(t *testing.T) {
	h := newTestHandler(t, config.ServerData{})
	_, sectionID, _ := seedAPI(t, h)

	rec := do(t, h, http.MethodGet, "/api/trail-sections/graph?format=msgpack", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, responseformat.ContentTypeMsgPack, rec.Header().Get("Content-Type"))

	var body map[string]map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["edges"], fmt.Sprint(sectionID))
	assert.Len(t, body["nodes"], 2)
}
