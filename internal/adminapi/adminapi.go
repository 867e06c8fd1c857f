// Package adminapi is a read-only operability surface (/health, /api/rooms,
// /api/rooms/:id, /api/metrics) bound on its own listen address, separate
// from the conferencing transport. It performs no authentication.
package adminapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RoomInfo is the admin-facing view of one room.
type RoomInfo struct {
	ID               string `json:"id"`
	DisplayName      string `json:"display_name"`
	AmbienceID       string `json:"ambience_id"`
	ParticipantCount int    `json:"participant_count"`
	ChatMessages     int    `json:"chat_messages"`
}

// Metrics is the admin-facing view of process-wide counters.
type Metrics struct {
	TotalRooms    int `json:"total_rooms"`
	TotalClients  int `json:"total_clients"`
	AmbienceBytes int `json:"ambience_bytes"`
}

// Source is the minimal read-only view the admin API needs; easymund's
// Registry implements it via an adapter in the root package.
type Source interface {
	Rooms() []RoomInfo
	Room(id string) (RoomInfo, bool)
	Metrics() Metrics
}

// Server is the Echo application serving the admin surface.
type Server struct {
	echo      *echo.Echo
	src       Source
	startedAt time.Time
}

// New constructs the admin API app bound to src, which supplies room and
// metrics data. startedAt is reported back as uptime in /api/metrics.
func New(src Source, startedAt time.Time) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	s := &Server{echo: e, src: src, startedAt: startedAt}
	s.registerRoutes()
	return s
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			slog.Info("admin request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration", time.Since(start))
			return err
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/rooms", s.handleRoomList)
	s.echo.GET("/api/rooms/:id", s.handleRoom)
	s.echo.GET("/api/metrics", s.handleMetrics)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoomList(c echo.Context) error {
	return c.JSON(http.StatusOK, s.src.Rooms())
}

func (s *Server) handleRoom(c echo.Context) error {
	room, ok := s.src.Room(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "room not found"})
	}
	return c.JSON(http.StatusOK, room)
}

func (s *Server) handleMetrics(c echo.Context) error {
	m := s.src.Metrics()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"total_rooms":    m.TotalRooms,
		"total_clients":  m.TotalClients,
		"ambience_bytes": humanize.Bytes(uint64(m.AmbienceBytes)),
		"uptime":         humanize.RelTime(s.startedAt, time.Now(), "", ""),
	})
}

// Run starts the admin API listener. It blocks until the server errors or
// is shut down.
func (s *Server) Run(addr string) error {
	err := s.echo.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
