package restserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/info3g/hikstar-celery/internal/graph"
	"github.com/info3g/hikstar-celery/internal/reconcile"
	"github.com/info3g/hikstar-celery/internal/store"
	"github.com/info3g/hikstar-celery/pkg/responseformat"
)

// maxBodyBytes caps admin payloads
const maxBodyBytes = 4 << 20

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	store     *store.Store
	logger    *zap.SugaredLogger
	formatter *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(st *store.Store, logger *zap.SugaredLogger) *Handlers {
	return &Handlers{
		store:     st,
		logger:    logger,
		formatter: responseformat.NewFormatter(),
	}
}

// Health answers 200 when the database responds
func (h *Handlers) Health(w http.ResponseWriter, req *http.Request) {
	if err := h.store.Ping(req.Context()); err != nil {
		h.write(w, req, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	h.write(w, req, http.StatusOK, map[string]string{"status": "ok"})
}

// GetGraph returns the topology graph of all sections, or of the ids given as
// ?ids=1,2,3
func (h *Handlers) GetGraph(w http.ResponseWriter, req *http.Request) {
	ids, err := parseIDList(req.URL.Query().Get("ids"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	g, err := h.store.BuildGraph(req.Context(), ids)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.write(w, req, http.StatusOK, g)
}

// GetGraphComponents returns the connected groups of node keys
func (h *Handlers) GetGraphComponents(w http.ResponseWriter, req *http.Request) {
	ids, err := parseIDList(req.URL.Query().Get("ids"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	g, err := h.store.BuildGraph(req.Context(), ids)
	if err != nil {
		h.writeError(w, err)
		return
	}

	components := g.Components()
	if components == nil {
		components = [][]graph.NodeKey{}
	}
	h.write(w, req, http.StatusOK, componentsResponse{Count: len(components), Components: components})
}

func (h *Handlers) GetTrail(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	trail, err := h.store.GetTrail(req.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.write(w, req, http.StatusOK, trail)
}

// GetTrailActivities returns the stored duration and difficulty per activity
// of a trail, with the trail summary
func (h *Handlers) GetTrailActivities(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	m, err := h.store.TrailMetrics(req.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.write(w, req, http.StatusOK, m)
}

func (h *Handlers) RecomputeTrail(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	m, err := h.store.RecomputeTrailMetrics(req.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.write(w, req, http.StatusOK, m)
}

// RecomputeAll recomputes the metrics of every trail
func (h *Handlers) RecomputeAll(w http.ResponseWriter, req *http.Request) {
	n, err := h.store.RecomputeAll(req.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.write(w, req, http.StatusOK, countResponse{Count: n})
}

func (h *Handlers) ListActivities(w http.ResponseWriter, req *http.Request) {
	activities, err := h.store.ListActivities(req.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.write(w, req, http.StatusOK, activities)
}

func (h *Handlers) GetLocation(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	loc, err := h.store.GetLocation(req.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.write(w, req, http.StatusOK, loc)
}

// SaveTrail creates (POST) or updates (PUT) a trail
func (h *Handlers) SaveTrail(w http.ResponseWriter, req *http.Request) {
	id, err := optionalPathID(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var in store.TrailInput
	if err := decodeBody(w, req, &in); err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.store.SaveTrail(req.Context(), id, &in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.write(w, req, savedStatus(id), res)
}

func (h *Handlers) DeleteTrail(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.store.DeleteTrail(req.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveTrailSection creates (POST) or updates (PUT) a trail section
func (h *Handlers) SaveTrailSection(w http.ResponseWriter, req *http.Request) {
	id, err := optionalPathID(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var in store.TrailSectionInput
	if err := decodeBody(w, req, &in); err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.store.SaveTrailSection(req.Context(), id, &in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.write(w, req, savedStatus(id), res)
}

// BulkUpdateSectionActivities gives every listed section the same activities
func (h *Handlers) BulkUpdateSectionActivities(w http.ResponseWriter, req *http.Request) {
	var in store.BulkSectionActivities
	if err := decodeBody(w, req, &in); err != nil {
		h.writeError(w, err)
		return
	}

	logs, err := h.store.BulkUpdateSectionActivities(req.Context(), &in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.write(w, req, http.StatusOK, bulkResponse{Sections: logs})
}

func (h *Handlers) MergeDuplicateSections(w http.ResponseWriter, req *http.Request) {
	deleted, err := h.store.MergeDuplicateSections(req.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if deleted == nil {
		deleted = []int64{}
	}
	h.write(w, req, http.StatusOK, mergeResponse{Deleted: deleted})
}

// SaveActivity creates (POST) or updates (PUT) an activity. An update
// recomputes every trail using it.
func (h *Handlers) SaveActivity(w http.ResponseWriter, req *http.Request) {
	id, err := optionalPathID(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var in store.ActivityInput
	if err := decodeBody(w, req, &in); err != nil {
		h.writeError(w, err)
		return
	}

	activity, n, err := h.store.SaveActivity(req.Context(), id, &in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.write(w, req, savedStatus(id), activityResponse{Activity: activity, Recomputed: n})
}

func (h *Handlers) SaveLocation(w http.ResponseWriter, req *http.Request) {
	id, err := optionalPathID(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var in store.LocationInput
	if err := decodeBody(w, req, &in); err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.store.SaveLocation(req.Context(), id, &in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.write(w, req, savedStatus(id), res)
}

// errBadRequest marks request errors caught before the store is reached
var errBadRequest = errors.New("bad request")

func pathID(req *http.Request) (int64, error) {
	raw := mux.Vars(req)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, raw)
	}
	return id, nil
}

// optionalPathID returns 0 on routes without an {id}, meaning create
func optionalPathID(req *http.Request) (int64, error) {
	if _, ok := mux.Vars(req)["id"]; !ok {
		return 0, nil
	}
	return pathID(req)
}

func parseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: invalid id %q in ids", errBadRequest, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func decodeBody(w http.ResponseWriter, req *http.Request, dest interface{}) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decoding request body: %v", errBadRequest, err)
	}
	return nil
}

func savedStatus(id int64) int {
	if id == 0 {
		return http.StatusCreated
	}
	return http.StatusOK
}

// statusFor maps store and domain errors onto HTTP status codes
func statusFor(err error) int {
	var geomErr *graph.InvalidGeometryError
	var unknownErr *reconcile.UnknownIdentityError

	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, store.ErrInvalidReference):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.As(err, &geomErr), errors.As(err, &unknownErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Errorf("request failed: %v", err)
		msg = http.StatusText(status)
	}
	h.writeJSON(w, status, errorResponse{Error: msg})
}

// write encodes a response in the format the request asked for
func (h *Handlers) write(w http.ResponseWriter, req *http.Request, status int, body interface{}) {
	if err := h.formatter.Write(w, req, status, body); err != nil {
		h.logger.Errorf("error encoding response: %v", err)
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Errorf("error encoding response: %v", err)
	}
}
