package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anisub/anisub/internal/kitsu"
	"github.com/anisub/anisub/internal/nyaa"
)

// respondError writes the JSON error body. Upstream status codes pass
// through with their canonical reason; everything else is an opaque 500.
func (s *Server) respondError(c echo.Context, err error) error {
	var (
		kitsuErr *kitsu.StatusError
		nyaaErr  *nyaa.StatusError
	)
	switch {
	case errors.As(err, &kitsuErr):
		return errorJSON(c, kitsuErr.Code)
	case errors.As(err, &nyaaErr):
		return errorJSON(c, nyaaErr.Code)
	}

	s.logger.Error().Err(err).Msg("request failed")
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func errorJSON(c echo.Context, code int) error {
	return c.JSON(code, map[string]string{"error": http.StatusText(code)})
}
