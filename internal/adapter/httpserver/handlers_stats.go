package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) registerStatsRoutes() {
	s.echo.GET("/stats", s.handleStats, s.apiRateLimiter())
}

func (s *Server) handleStats(c echo.Context) error {
	stats := s.app.Stats()
	if stats.Rooms == nil {
		stats.Rooms = map[string]int{}
	}

	if err := c.JSON(http.StatusOK, stats); err != nil {
		return fmt.Errorf("failed to write stats response: %w", err)
	}
	return nil
}
