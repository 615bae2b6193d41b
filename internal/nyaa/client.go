// Package nyaa fetches SubsPlease releases from the nyaa.si RSS feed and
// assembles them into download groups.
package nyaa

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/anisub/anisub/internal/model"
	"github.com/anisub/anisub/internal/parser"
)

const (
	defaultBaseURL = "https://nyaa.si/"
	sourceQuery    = "[SubsPlease]"

	// Feed category 1_2 is anime/english-translated, filter 2 is
	// trusted-only uploads.
	categoryParam = "1_2"
	filterParam   = "2"

	requestTimeout = 30 * time.Second
)

// StatusError reports a non-success response from the feed endpoint.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("nyaa responded with status %d", e.Code)
}

// Client fetches and parses the release feed.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

// NewClient creates a feed client. An empty baseURL targets nyaa.si.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		logger:     logger.With().Str("component", "nyaa").Logger(),
	}
}

type rssFeed struct {
	XMLName xml.Name  `xml:"rss"`
	Items   []rssItem `xml:"channel>item"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	GUID    string `xml:"guid"`
	PubDate string `xml:"pubDate"`
}

// Groups fetches the feed, optionally narrowed to a title search, and
// returns releases grouped by (title, variant) in feed order. Items that
// fail to parse are logged and dropped.
func (c *Client) Groups(ctx context.Context, title string) ([]model.DownloadGroup, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	q.Set("page", "rss")
	q.Set("q", strings.TrimSpace(sourceQuery+" "+title))
	q.Set("c", categoryParam)
	q.Set("f", filterParam)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	groups := c.groupItems(feed.Items)
	c.logger.Debug().
		Int("items", len(feed.Items)).
		Int("groups", len(groups)).
		Msg("fetched feed")

	return groups, nil
}

// groupItems folds feed items into download groups, merging resolutions of
// the same logical release. Group order follows first appearance in the
// feed.
func (c *Client) groupItems(items []rssItem) []model.DownloadGroup {
	groups := make([]model.DownloadGroup, 0, len(items))
	index := make(map[string]int)

	for _, item := range items {
		if item.Link == "" || item.GUID == "" {
			c.logger.Debug().Str("title", item.Title).Msg("skipping item without link or guid")
			continue
		}

		parsed, err := parser.Parse(item.Title)
		if err != nil {
			c.logger.Debug().Err(err).Str("title", item.Title).Msg("skipping unparsable item")
			continue
		}

		published, err := parsePubDate(item.PubDate)
		if err != nil {
			c.logger.Debug().Err(err).Str("title", item.Title).Msg("skipping item with bad date")
			continue
		}

		download := model.Download{
			Comments:      item.GUID,
			Resolution:    parsed.Resolution,
			Torrent:       item.Link,
			FileName:      item.Title,
			PublishedDate: published,
		}

		key := parsed.Title + "|" + variantKey(parsed.Variant)
		if i, ok := index[key]; ok {
			g := &groups[i]
			g.Downloads = append(g.Downloads, download)
			if published.Before(g.CreatedAt) {
				g.CreatedAt = published
			}
			if published.After(g.UpdatedAt) {
				g.UpdatedAt = published
			}
			continue
		}

		index[key] = len(groups)
		groups = append(groups, model.DownloadGroup{
			Title:     parsed.Title,
			Variant:   parsed.Variant,
			CreatedAt: published,
			UpdatedAt: published,
			Downloads: []model.Download{download},
		})
	}

	return groups
}

func variantKey(v model.DownloadVariant) string {
	switch v := v.(type) {
	case model.Batch:
		return fmt.Sprintf("batch:%d-%d", v.Start, v.End)
	case model.Episode:
		var b strings.Builder
		fmt.Fprintf(&b, "episode:%d", v.Number)
		if v.Decimal != nil {
			fmt.Fprintf(&b, ".%d", *v.Decimal)
		}
		if v.Version != nil {
			fmt.Fprintf(&b, "v%d", *v.Version)
		}
		b.WriteString(v.Extra)
		return b.String()
	default:
		return "movie"
	}
}

func parsePubDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC1123Z, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC1123, s)
}
