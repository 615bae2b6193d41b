package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func (s *Server) listShows(c echo.Context) error {
	shows, err := s.catalog.Shows(c.Request().Context())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, shows)
}

func (s *Server) getShow(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid show id"})
	}

	show, err := s.catalog.Show(c.Request().Context(), uint32(id))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, show)
}
