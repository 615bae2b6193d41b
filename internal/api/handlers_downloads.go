package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anisub/anisub/internal/model"
	"github.com/anisub/anisub/internal/repository"
)

const (
	// Unfiltered listings change only when the poller finds something,
	// so they can sit in the cache much longer than ad-hoc searches.
	unfilteredTTL = time.Hour
	searchTTL     = 5 * time.Minute
)

func (s *Server) listDownloads(c echo.Context) error {
	if s.store == nil {
		return errorJSON(c, http.StatusNotFound)
	}

	title := c.QueryParam("title")
	if s.cache != nil {
		if groups, ok := s.cache.Get(title); ok {
			return c.JSON(http.StatusOK, groups)
		}
	}

	groups, err := s.store.GetWithDownloads(c.Request().Context(), nil, repository.QueryOptions{Title: title})
	if err != nil {
		return s.respondError(c, err)
	}

	if s.cache != nil {
		ttl := searchTTL
		if title == "" {
			ttl = unfilteredTTL
		}
		s.cache.InsertStamped(title, groups, contentStamp(groups), ttl)
	}

	return c.JSON(http.StatusOK, groups)
}

func (s *Server) listDownloadsByKind(kind *model.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.store == nil {
			return errorJSON(c, http.StatusNotFound)
		}

		groups, err := s.store.GetWithDownloads(c.Request().Context(), kind, repository.QueryOptions{
			Title: c.QueryParam("title"),
		})
		if err != nil {
			return s.respondError(c, err)
		}
		return c.JSON(http.StatusOK, groups)
	}
}

// contentStamp is the newest updated_at in the listing, so cache entries
// can be evicted the moment fresher groups land.
func contentStamp(groups []model.DownloadGroup) time.Time {
	var stamp time.Time
	for _, g := range groups {
		if g.UpdatedAt.After(stamp) {
			stamp = g.UpdatedAt
		}
	}
	if stamp.IsZero() {
		stamp = time.Now()
	}
	return stamp
}
