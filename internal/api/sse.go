package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anisub/anisub/internal/model"
)

const keepAliveInterval = 15 * time.Second

// streamDownloads serves the SSE stream of freshly discovered groups. A
// nil kind streams every variant; otherwise groups of other variants are
// filtered out subscriber-side.
func (s *Server) streamDownloads(kind *model.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		w := c.Response()
		w.Header().Set(echo.HeaderContentType, "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		w.Flush()

		sub := s.hub.Subscribe()
		defer sub.Close()

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		ctx := c.Request().Context()
		for {
			select {
			case <-ctx.Done():
				return nil

			case <-sub.Lagged():
				s.logger.Warn().Msg("closing lagged event stream")
				return nil

			case <-keepAlive.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				w.Flush()

			case g := <-sub.Updates():
				if kind != nil && g.Variant.Kind() != *kind {
					continue
				}
				data, err := json.Marshal(g)
				if err != nil {
					s.logger.Error().Err(err).Str("title", g.Title).Msg("failed to encode group")
					continue
				}
				fmt.Fprintf(w, "event: download\ndata: %s\n\n", data)
				w.Flush()
			}
		}
	}
}
