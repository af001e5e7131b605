package network

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/engine"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/events"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/infra/storage"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/config"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/metrics"
)

type testServer struct {
	engine  *engine.Engine
	hub     *Hub
	journal *storage.Journal
	router  *gin.Engine
}

func newTestServer(t *testing.T, withJournal bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	settings := engine.SettingsFromConfig(config.Default())
	settings.Manual = true
	m := metrics.New()
	eng := engine.NewEngine(events.NewEventLog(), nil, m, settings)
	t.Cleanup(eng.Shutdown)

	ts := &testServer{engine: eng}
	var recon *storage.Reconstructor
	if withJournal {
		db, err := storage.InitSQLite(storage.MemoryDSN, 1)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		repo := storage.NewSQLiteJournalRepository(db)
		ts.journal = storage.NewJournal(repo, nil, m)
		recon = storage.NewReconstructor(repo)
	}

	ts.hub = NewHub(eng, nil, m, HubOptions{})
	srv := NewServer(eng, ts.hub, NewReplayHandler(eng, recon, nil), m, nil, "bucket-server-test")
	ts.router = srv.Router()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) create(t *testing.T) engine.Snapshot {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	ts.create(t)

	w := ts.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[HealthResponse](t, w)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Sessions)
	assert.Zero(t, health.Clients)
}

func TestCreateSessionWithDefaults(t *testing.T) {
	ts := newTestServer(t, false)
	snap := ts.create(t)

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, engine.StatusReady, snap.Status)
	assert.Equal(t, "Begin", snap.MoveLabel)
	assert.Equal(t, engine.DefaultConfig(), snap.Config)
	require.Len(t, snap.Buckets, 2)
	assert.Equal(t, 3, snap.Buckets[0].Capacity)
	assert.Equal(t, 5, snap.Buckets[1].Capacity)
	assert.Equal(t, 30, snap.Bomb.Remaining)
}

func TestCreateSessionRejectsUnsolvablePuzzle(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/sessions", engine.Config{CapacityA: 2, CapacityB: 4, Target: 3, TimeLimit: 10})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, string(engine.KindConfigurationRejected), resp.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidRequest, decode[ErrorResponse](t, rec).Code)
}

func TestCreateSessionReadsChunkedBody(t *testing.T) {
	ts := newTestServer(t, false)
	cfg := engine.DefaultConfig()
	cfg.TimeLimit = 45
	payload, err := json.Marshal(cfg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	snap := decode[engine.Snapshot](t, w)
	assert.Equal(t, cfg, snap.Config)
	assert.Equal(t, 45, snap.Bomb.Remaining)

	req = httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(""))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, engine.DefaultConfig(), decode[engine.Snapshot](t, w).Config)
}

func TestPlayThroughCommands(t *testing.T) {
	ts := newTestServer(t, false)
	id := ts.create(t).ID
	path := "/api/sessions/" + id + "/commands"

	script := []engine.Command{
		{Type: engine.CommandFill, Bucket: engine.BucketB},
		{Type: engine.CommandTransfer, Bucket: engine.BucketB, To: engine.BucketA},
		{Type: engine.CommandDump, Bucket: engine.BucketA},
		{Type: engine.CommandTransfer, Bucket: engine.BucketB, To: engine.BucketA},
		{Type: engine.CommandFill, Bucket: engine.BucketB},
		{Type: engine.CommandTransfer, Bucket: engine.BucketB, To: engine.BucketA},
	}
	var last CommandResponse
	for _, cmd := range script {
		w := ts.do(t, http.MethodPost, path, cmd)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		last = decode[CommandResponse](t, w)
		assert.Nil(t, last.Error)
	}

	assert.Equal(t, engine.StatusSolved, last.Result.Snapshot.Status)
	assert.Equal(t, "6 Moves", last.Result.Snapshot.MoveLabel)
	assert.Equal(t, 4, last.Result.Snapshot.Buckets[1].Content)

	// Over means over.
	w := ts.do(t, http.MethodPost, path, engine.Command{Type: engine.CommandFill, Bucket: engine.BucketA})
	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decode[CommandResponse](t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(engine.KindInvalidState), resp.Error.Code)
	assert.Equal(t, engine.StatusSolved, resp.Result.Snapshot.Status)
}

func TestCommandErrorsCarrySnapshot(t *testing.T) {
	ts := newTestServer(t, false)
	id := ts.create(t).ID
	path := "/api/sessions/" + id + "/commands"

	w := ts.do(t, http.MethodPost, path, engine.Command{Type: engine.CommandLoad, Bucket: engine.BucketA, Amount: 7})
	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decode[CommandResponse](t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(engine.KindOverflow), resp.Error.Code)
	assert.Zero(t, resp.Result.Snapshot.Buckets[0].Content)

	w = ts.do(t, http.MethodPost, path, engine.Command{Type: engine.CommandDisarm, Pressure: 2})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(engine.KindInvalidState), decode[CommandResponse](t, w).Error.Code)

	w = ts.do(t, http.MethodPost, path, engine.Command{Type: "JUGGLE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(engine.KindInvalidCommand), decode[CommandResponse](t, w).Error.Code)
}

func TestConfigureEndpoint(t *testing.T) {
	ts := newTestServer(t, false)
	id := ts.create(t).ID
	path := "/api/sessions/" + id + "/configure"

	w := ts.do(t, http.MethodPost, path, engine.Config{CapacityA: 4, CapacityB: 9, Target: 6, TimeLimit: 60, StrictSolvability: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decode[CommandResponse](t, w).Result.Snapshot
	assert.Equal(t, 9, snap.Buckets[1].Capacity)
	assert.Equal(t, 60, snap.Bomb.Remaining)

	w = ts.do(t, http.MethodPost, path, engine.Config{CapacityA: 4, CapacityB: 6, Target: 3, TimeLimit: 60, StrictSolvability: true})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[CommandResponse](t, w)
	assert.Equal(t, string(engine.KindConfigurationRejected), resp.Error.Code)
	assert.Equal(t, 9, resp.Result.Snapshot.Buckets[1].Capacity)
}

func TestGetListDelete(t *testing.T) {
	ts := newTestServer(t, false)
	a := ts.create(t)
	ts.create(t)

	w := ts.do(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]engine.Snapshot](t, w), 2)

	w = ts.do(t, http.MethodGet, "/api/sessions/"+a.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, a.ID, decode[engine.Snapshot](t, w).ID)

	w = ts.do(t, http.MethodDelete, "/api/sessions/"+a.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/api/sessions/"+a.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(engine.KindNotFound), decode[ErrorResponse](t, w).Code)

	w = ts.do(t, http.MethodDelete, "/api/sessions/"+a.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSolvableEndpoint(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodGet, "/api/solvable?a=3&b=5&target=4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[SolvableResponse](t, w)
	assert.True(t, resp.Solvable)
	assert.True(t, resp.Reachable)
	assert.Equal(t, 1, resp.GCD)

	w = ts.do(t, http.MethodGet, "/api/solvable?a=3&b=6&target=4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[SolvableResponse](t, w)
	assert.True(t, resp.Solvable)
	assert.False(t, resp.Reachable)
	assert.Equal(t, 3, resp.GCD)

	w = ts.do(t, http.MethodGet, "/api/solvable?a=3&b=5", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReplayEndpoint(t *testing.T) {
	ts := newTestServer(t, false)
	id := ts.create(t).ID
	ts.do(t, http.MethodPost, "/api/sessions/"+id+"/commands", engine.Command{Type: engine.CommandFill, Bucket: engine.BucketA})

	w := ts.do(t, http.MethodGet, "/api/sessions/"+id+"/replay", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[ReplayResponse](t, w)
	assert.Equal(t, id, all.SessionID)
	require.NotEmpty(t, all.Events)
	assert.Equal(t, events.EventTypeSessionConfigured, all.Events[0].Type)

	w = ts.do(t, http.MethodGet, "/api/sessions/"+id+"/replay?type=BUCKET_ACTION", nil)
	require.Equal(t, http.StatusOK, w.Code)
	actions := decode[ReplayResponse](t, w)
	assert.Equal(t, 1, actions.TotalEvents)
	assert.Equal(t, "type BUCKET_ACTION", actions.FilteredBy)

	last := all.Events[len(all.Events)-1].Sequence
	w = ts.do(t, http.MethodGet, "/api/sessions/"+id+"/replay?since="+jsonInt(last), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[ReplayResponse](t, w).TotalEvents)

	w = ts.do(t, http.MethodGet, "/api/sessions/"+id+"/replay?since=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecapEndpoint(t *testing.T) {
	ts := newTestServer(t, true)
	ctx := context.Background()
	id := ts.create(t).ID

	// Recap needs journal rows first.
	w := ts.do(t, http.MethodGet, "/api/sessions/"+id+"/recap", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	ts.do(t, http.MethodPost, "/api/sessions/"+id+"/commands", engine.Command{Type: engine.CommandFill, Bucket: engine.BucketB})
	for _, e := range ts.engine.EventLog().BySession(id) {
		ts.journal.Record(ctx, e)
	}

	w = ts.do(t, http.MethodGet, "/api/sessions/"+id+"/recap", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	recap := decode[storage.Recap](t, w)
	assert.Equal(t, id, recap.SessionID)
	assert.Equal(t, 1, recap.MoveCount)
	assert.Equal(t, 5, recap.Contents["B"])
}

func TestRecapDisabledWithoutJournal(t *testing.T) {
	ts := newTestServer(t, false)
	id := ts.create(t).ID

	w := ts.do(t, http.MethodGet, "/api/sessions/"+id+"/recap", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, CodeUnavailable, decode[ErrorResponse](t, w).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, false)
	id := ts.create(t).ID
	ts.do(t, http.MethodPost, "/api/sessions/"+id+"/commands", engine.Command{Type: engine.CommandFill, Bucket: engine.BucketA})

	w := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "bucket_commands_total")
	assert.Contains(t, body, "bucket_sessions_active 1")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind engine.Kind
		want int
	}{
		{engine.KindNotFound, http.StatusNotFound},
		{engine.KindTooManySessions, http.StatusTooManyRequests},
		{engine.KindConfigurationRejected, http.StatusUnprocessableEntity},
		{engine.KindInvalidCommand, http.StatusBadRequest},
		{engine.KindInternal, http.StatusInternalServerError},
		{engine.KindOverflow, http.StatusConflict},
		{engine.KindWrongPressure, http.StatusConflict},
		{engine.KindInvalidState, http.StatusConflict},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.kind), tt.kind)
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
