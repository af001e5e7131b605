// Package network - replay.go
// Replay and recap endpoints: the in-memory event history of one session and
// the journal-derived recap of its latest round.
package network

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/engine"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/events"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/infra/storage"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/logger"
)

// ReplayHandler provides the replay and recap API.
type ReplayHandler struct {
	engine        *engine.Engine
	reconstructor *storage.Reconstructor
	logger        *logger.Logger
}

// NewReplayHandler creates a new replay handler. A nil reconstructor
// disables the recap endpoint.
func NewReplayHandler(eng *engine.Engine, recon *storage.Reconstructor, log *logger.Logger) *ReplayHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &ReplayHandler{
		engine:        eng,
		reconstructor: recon,
		logger:        log,
	}
}

// ReplayQuery filters a replay.
type ReplayQuery struct {
	Type  string `form:"type"`
	Since int64  `form:"since" binding:"gte=0"`
}

// ReplayResponse is the API response for a session replay.
type ReplayResponse struct {
	SessionID   string             `json:"session_id"`
	TotalEvents int                `json:"total_events"`
	FilteredBy  string             `json:"filtered_by,omitempty"`
	GeneratedAt string             `json:"generated_at"`
	Events      []events.GameEvent `json:"events"`
}

// HandleReplay returns a session's event history.
// GET /api/sessions/:id/replay?type=BUCKET_ACTION&since=N
func (rh *ReplayHandler) HandleReplay(c *gin.Context) {
	id := c.Param("id")
	if _, err := rh.engine.Get(id); err != nil {
		writeError(c, err)
		return
	}

	var q ReplayQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidRequest})
		return
	}

	var source []events.GameEvent
	filterDesc := ""
	if q.Type != "" {
		source = rh.engine.EventLog().ByType(id, events.EventType(q.Type))
		filterDesc = "type " + q.Type
	} else {
		source = rh.engine.EventLog().BySession(id)
	}

	replay := make([]events.GameEvent, 0, len(source))
	for _, e := range source {
		if e.Sequence <= q.Since {
			continue
		}
		replay = append(replay, e)
	}

	rh.logger.Debug("replay served", "session", id, "events", len(replay))
	c.JSON(http.StatusOK, ReplayResponse{
		SessionID:   id,
		TotalEvents: len(replay),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      replay,
	})
}

// HandleRecap returns the journal recap of a session.
// GET /api/sessions/:id/recap
func (rh *ReplayHandler) HandleRecap(c *gin.Context) {
	id := c.Param("id")
	if _, err := rh.engine.Get(id); err != nil {
		writeError(c, err)
		return
	}
	if rh.reconstructor == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "journal disabled", Code: CodeUnavailable})
		return
	}

	recap, err := rh.reconstructor.Rebuild(c.Request.Context(), id)
	if err != nil {
		rh.logger.Error("recap failed", "session", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "recap failed", Code: string(engine.KindInternal)})
		return
	}
	if recap == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no journal entries yet", Code: string(engine.KindNotFound)})
		return
	}
	c.JSON(http.StatusOK, recap)
}

// RegisterRoutes sets up the replay routes under a session group.
func (rh *ReplayHandler) RegisterRoutes(sessions *gin.RouterGroup) {
	sessions.GET("/:id/replay", rh.HandleReplay)
	sessions.GET("/:id/recap", rh.HandleRecap)
}
