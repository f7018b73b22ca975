package restserver

import (
	"github.com/info3g/hikstar-celery/internal/database"
	"github.com/info3g/hikstar-celery/internal/graph"
	"github.com/info3g/hikstar-celery/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

type componentsResponse struct {
	Count      int               `json:"count"`
	Components [][]graph.NodeKey `json:"components"`
}

type countResponse struct {
	Count int `json:"count"`
}

// bulkResponse reports the activity changes per section id
type bulkResponse struct {
	Sections map[int64]*store.ChangeLog `json:"sections"`
}

type mergeResponse struct {
	Deleted []int64 `json:"deleted"`
}

type activityResponse struct {
	Activity *database.Activity `json:"activity"`
	// Recomputed counts the trail activities whose metrics were refreshed
	Recomputed int `json:"recomputed"`
}
