package geometry

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/info3g/hikstar-celery/internal/database"
	"github.com/info3g/hikstar-celery/pkg/config"
)

type fakeService struct {
	mu      sync.Mutex
	calls   []int64
	err     error
	started chan int64
	release chan struct{}
	panics  bool
}

func (f *fakeService) Refresh(ctx context.Context, trailID int64) error {
	if f.started != nil {
		f.started <- trailID
	}
	if f.release != nil {
		<-f.release
	}
	if f.panics {
		panic("boom")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, trailID)
	return f.err
}

func (f *fakeService) called() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]int64(nil), f.calls...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestRefresherRunsScheduled(t *testing.T) {
	svc := &fakeService{}
	r, err := NewRefresher(svc, 4, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer r.Close(time.Second)

	r.Schedule(3)
	r.Schedule(1)
	r.Schedule(2)
	r.Wait()

	assert.Equal(t, []int64{1, 2, 3}, svc.called())
}

func TestRefresherFailureIsLogged(t *testing.T) {
	svc := &fakeService{err: errors.New("function missing")}
	r, err := NewRefresher(svc, 1, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer r.Close(time.Second)

	r.Schedule(9)
	r.Wait()
	assert.Equal(t, []int64{9}, svc.called())
}

func TestRefresherDropsWhenBusy(t *testing.T) {
	svc := &fakeService{started: make(chan int64, 1), release: make(chan struct{})}
	r, err := NewRefresher(svc, 1, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer r.Close(time.Second)

	r.Schedule(1)
	assert.Equal(t, int64(1), <-svc.started)

	r.Schedule(2)

	close(svc.release)
	r.Wait()
	assert.Equal(t, []int64{1}, svc.called())
}

func TestRefresherSurvivesPanic(t *testing.T) {
	svc := &fakeService{panics: true}
	r, err := NewRefresher(svc, 1, zap.NewNop().Sugar())
	require.NoError(t, err)

	r.Schedule(5)
	r.Wait()
	assert.NoError(t, r.Close(time.Second))
}

func newDB(t *testing.T) *database.Client {
	t.Helper()
	c := database.NewClient(config.StorageData{
		Backend: config.BackendSQLite,
		SQLite:  &config.SQLiteData{Path: ":memory:"},
	}, zap.NewNop().Sugar())
	require.NoError(t, c.Connect())
	require.NoError(t, c.Migrate())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestStitchService(t *testing.T) {
	c := newDB(t)
	db := c.DB

	trail := database.Trail{Name: "ridge"}
	require.NoError(t, db.Create(&trail).Error)

	a := database.TrailSection{Name: "a", Geometry: []byte(`[[0,0],[1,0]]`)}
	b := database.TrailSection{Name: "b", Geometry: []byte(`[[1,0],[1,1],[2,1]]`)}
	require.NoError(t, db.Create(&a).Error)
	require.NoError(t, db.Create(&b).Error)

	require.NoError(t, db.Create(&[]database.EventTrailSection{
		{TrailID: trail.ID, TrailSectionID: b.ID, Order: 2},
		{TrailID: trail.ID, TrailSectionID: a.ID, Order: 1},
	}).Error)

	require.NoError(t, NewStitchService(db).Refresh(context.Background(), trail.ID))

	var stored database.Trail
	require.NoError(t, db.First(&stored, trail.ID).Error)

	var points [][]float64
	require.NoError(t, json.Unmarshal(stored.Geometry, &points))
	assert.Equal(t, [][]float64{{0, 0}, {1, 0}, {1, 0}, {1, 1}, {2, 1}}, points)
}

func TestStitchServiceNoEvents(t *testing.T) {
	c := newDB(t)

	trail := database.Trail{Name: "empty"}
	require.NoError(t, c.DB.Create(&trail).Error)
	require.NoError(t, NewStitchService(c.DB).Refresh(context.Background(), trail.ID))

	var stored database.Trail
	require.NoError(t, c.DB.First(&stored, trail.ID).Error)
	assert.JSONEq(t, `[]`, string(stored.Geometry))
}
