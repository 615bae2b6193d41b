// Package api serves the REST, SSE and WebSocket surfaces.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/anisub/anisub/internal/hub"
	"github.com/anisub/anisub/internal/model"
	"github.com/anisub/anisub/internal/repository"
	"github.com/anisub/anisub/internal/requestcache"
)

// DownloadStore is the slice of the repository the handlers need.
type DownloadStore interface {
	GetWithDownloads(ctx context.Context, kind *model.Kind, opts repository.QueryOptions) ([]model.DownloadGroup, error)
}

// ShowCatalog is the catalog client surface the show handlers need.
type ShowCatalog interface {
	Show(ctx context.Context, id uint32) (model.Show, error)
	Shows(ctx context.Context) ([]model.Show, error)
}

// Server handles HTTP requests.
type Server struct {
	echo    *echo.Echo
	store   DownloadStore
	catalog ShowCatalog
	hub     *hub.Hub
	cache   *requestcache.Cache[[]model.DownloadGroup]
	logger  zerolog.Logger
}

// NewServer creates the API server. store and cache may be nil for a relay
// deployment without persistence; the download listing routes then answer
// 404 while the stream routes keep working.
func NewServer(store DownloadStore, catalog ShowCatalog, h *hub.Hub, cache *requestcache.Cache[[]model.DownloadGroup], logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		store:   store,
		catalog: catalog,
		hub:     h,
		cache:   cache,
		logger:  logger.With().Str("component", "api").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler exposes the router so the caller can mount it on a shared
// listener.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Compression buffers output, which breaks SSE and WebSocket.
			return c.Request().Header.Get("Upgrade") == "websocket" ||
				strings.HasSuffix(c.Path(), "/updates")
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	v1 := s.echo.Group("/v1")

	v1.GET("/shows", s.listShows)
	v1.GET("/shows/:id", s.getShow)

	v1.GET("/downloads", s.listDownloads)
	v1.GET("/downloads/updates", s.streamDownloads(nil))
	v1.GET("/ws", s.streamDownloadsWS)

	for kind, segment := range map[model.Kind]string{
		model.KindBatch:   "batches",
		model.KindEpisode: "episodes",
		model.KindMovie:   "movies",
	} {
		k := kind
		v1.GET("/downloads/"+segment, s.listDownloadsByKind(&k))
		v1.GET("/downloads/"+segment+"/updates", s.streamDownloads(&k))
	}
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
