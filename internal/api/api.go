// Package api exposes channel reports over HTTP.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cwbudde/algo-vpg/internal/service"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status   string `json:"status"`
	Channels int    `json:"channels"`
	Uptime   string `json:"uptime"`
}

// SignalResponse carries the filtered window of one channel.
type SignalResponse struct {
	Channel string    `json:"channel"`
	Length  int       `json:"length"`
	Signal  []float64 `json:"signal"`
}

// Server holds the HTTP handlers.
type Server struct {
	svc     *service.Manager
	log     *slog.Logger
	started time.Time
}

// New returns a server backed by svc.
func New(svc *service.Manager, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{svc: svc, log: log.With(slog.String("component", "api")), started: time.Now()}
}

// Routes builds the gin engine.
func (s *Server) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/healthz", s.health)
	channels := r.Group("/channels")
	{
		channels.GET("", s.listChannels)
		channels.GET("/:name", s.getChannel)
		channels.GET("/:name/signal", s.getSignal)
		channels.DELETE("/:name", s.resetChannel)
	}
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Channels: len(s.svc.List()),
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) listChannels(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.List())
}

func (s *Server) getChannel(c *gin.Context) {
	rep, err := s.svc.Report(c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) getSignal(c *gin.Context) {
	name := c.Param("name")
	sig, err := s.svc.Signal(name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SignalResponse{Channel: name, Length: len(sig), Signal: sig})
}

func (s *Server) resetChannel(c *gin.Context) {
	info, err := s.svc.Reset(c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidName):
		status = http.StatusBadRequest
	default:
		s.log.Error("request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
