// Package network exposes game sessions over HTTP and WebSocket.
// REST handlers and websocket clients both funnel into engine.Command, so
// every front end gets the same validation and error taxonomy.
package network

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/domain/rules"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/engine"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/logger"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/metrics"
)

// Transport-level error codes. Session errors use engine.Kind names.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeRateLimited    = "RATE_LIMITED"
	CodeUnavailable    = "UNAVAILABLE"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error taxonomy name.
	Code string `json:"code,omitempty"`
}

// CommandResponse carries the session state alongside a rejected command.
type CommandResponse struct {
	Result engine.Result  `json:"result"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Clients  int    `json:"clients"`
}

// SolvableQuery is the input of /api/solvable.
type SolvableQuery struct {
	CapacityA int `form:"a" binding:"gte=0"`
	CapacityB int `form:"b" binding:"gte=0"`
	Target    int `form:"target" binding:"gt=0"`
}

// SolvableResponse reports both feasibility checks.
type SolvableResponse struct {
	SolvableQuery
	Solvable  bool `json:"solvable"`
	Reachable bool `json:"reachable"`
	GCD       int  `json:"gcd"`
}

func errorResponse(err error) *ErrorResponse {
	return &ErrorResponse{Error: err.Error(), Code: string(engine.ErrorKind(err))}
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind engine.Kind) int {
	switch kind {
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindTooManySessions:
		return http.StatusTooManyRequests
	case engine.KindConfigurationRejected:
		return http.StatusUnprocessableEntity
	case engine.KindInvalidCommand:
		return http.StatusBadRequest
	case engine.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusConflict
	}
}

func writeError(c *gin.Context, err error) {
	resp := errorResponse(err)
	c.JSON(statusFor(engine.Kind(resp.Code)), resp)
}

// Server wires the REST API, websocket hub and metrics endpoint.
type Server struct {
	engine      *engine.Engine
	hub         *Hub
	replay      *ReplayHandler
	metrics     *metrics.Collector
	logger      *logger.Logger
	serviceName string
}

// NewServer creates the HTTP front end.
func NewServer(eng *engine.Engine, hub *Hub, replay *ReplayHandler, m *metrics.Collector, log *logger.Logger, serviceName string) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{
		engine:      eng,
		hub:         hub,
		replay:      replay,
		metrics:     m,
		logger:      log,
		serviceName: serviceName,
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(s.serviceName))
	r.Use(s.requestLogger())

	r.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api")
	api.GET("/solvable", s.handleSolvable)

	sessions := api.Group("/sessions")
	sessions.POST("", s.handleCreate)
	sessions.GET("", s.handleList)
	sessions.GET("/:id", s.handleGet)
	sessions.DELETE("/:id", s.handleDelete)
	sessions.POST("/:id/configure", s.handleConfigure)
	sessions.POST("/:id/commands", s.handleCommand)
	if s.replay != nil {
		s.replay.RegisterRoutes(sessions)
	}

	if s.hub != nil {
		r.GET("/ws/:id", s.hub.HandleWS)
	}
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	clients := 0
	if s.hub != nil {
		clients = s.hub.Count()
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: s.engine.Count(),
		Clients:  clients,
	})
}

func (s *Server) handleSolvable(c *gin.Context) {
	var q SolvableQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidRequest})
		return
	}
	c.JSON(http.StatusOK, SolvableResponse{
		SolvableQuery: q,
		Solvable:      rules.IsSolvable(q.CapacityA, q.CapacityB, q.Target),
		Reachable:     rules.IsReachable(q.CapacityA, q.CapacityB, q.Target),
		GCD:           rules.GCD(q.CapacityA, q.CapacityB),
	})
}

// handleCreate opens a session. An empty body uses the server defaults.
func (s *Server) handleCreate(c *gin.Context) {
	// Chunked bodies report ContentLength -1, so decode and treat EOF as absent.
	cfg := &engine.Config{}
	if err := c.ShouldBindJSON(cfg); errors.Is(err, io.EOF) {
		cfg = nil
	} else if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: CodeInvalidRequest})
		return
	}

	session, err := s.engine.Create(cfg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session.Snapshot())
}

func (s *Server) handleList(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.List())
}

func (s *Server) handleGet(c *gin.Context) {
	session, err := s.engine.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (s *Server) handleDelete(c *gin.Context) {
	if err := s.engine.Close(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleConfigure(c *gin.Context) {
	var cfg engine.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: CodeInvalidRequest})
		return
	}
	s.execute(c, engine.Command{Type: engine.CommandConfigure, Config: &cfg})
}

func (s *Server) handleCommand(c *gin.Context) {
	var cmd engine.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: CodeInvalidRequest})
		return
	}
	s.execute(c, cmd)
}

func (s *Server) execute(c *gin.Context, cmd engine.Command) {
	session, err := s.engine.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := session.Execute(c.Request.Context(), cmd)
	if err != nil {
		resp := errorResponse(err)
		c.JSON(statusFor(engine.Kind(resp.Code)), CommandResponse{Result: res, Error: resp})
		return
	}
	c.JSON(http.StatusOK, CommandResponse{Result: res})
}
