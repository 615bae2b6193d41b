package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the shape of a download group.
type Kind string

const (
	KindBatch   Kind = "batch"
	KindEpisode Kind = "episode"
	KindMovie   Kind = "movie"
)

// ParseKind converts a stored discriminator back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindBatch, KindEpisode, KindMovie:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown download variant %q", s)
}

// DownloadVariant is the closed set of release shapes a group can have.
// Exactly Batch, Episode and Movie implement it.
type DownloadVariant interface {
	Kind() Kind
}

// Batch is a packaged range of episodes, e.g. "(01-12)".
type Batch struct {
	Start uint32
	End   uint32
}

func (Batch) Kind() Kind { return KindBatch }

// Episode is a single numbered release. Decimal and Version are optional
// sub-identifiers ("10.5", "10v2"); Extra holds a trailing alphanumeric
// token some groups append ("10.5v2D").
type Episode struct {
	Number  uint32
	Decimal *uint32
	Version *uint32
	Extra   string
}

func (Episode) Kind() Kind { return KindEpisode }

// Movie is a release with no episode identifier at all.
type Movie struct{}

func (Movie) Kind() Kind { return KindMovie }

// Download is a single release file at one resolution.
type Download struct {
	Comments      string
	Resolution    uint16
	Torrent       string
	FileName      string
	PublishedDate time.Time
}

// DownloadGroup is one logical release (title + variant) with every
// resolution it was published at.
type DownloadGroup struct {
	Title     string
	Variant   DownloadVariant
	CreatedAt time.Time
	UpdatedAt time.Time
	Downloads []Download
}

type downloadJSON struct {
	Comments      string    `json:"comments"`
	Resolution    string    `json:"resolution"`
	Torrent       string    `json:"torrent"`
	FileName      string    `json:"file_name"`
	PublishedDate time.Time `json:"published_date"`
}

// MarshalJSON renders the resolution as a "1080p" style string.
func (d Download) MarshalJSON() ([]byte, error) {
	return json.Marshal(downloadJSON{
		Comments:      d.Comments,
		Resolution:    fmt.Sprintf("%dp", d.Resolution),
		Torrent:       d.Torrent,
		FileName:      d.FileName,
		PublishedDate: d.PublishedDate.UTC(),
	})
}

func (d *Download) UnmarshalJSON(data []byte) error {
	var aux downloadJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	res, err := strconv.ParseUint(strings.TrimSuffix(aux.Resolution, "p"), 10, 16)
	if err != nil {
		return fmt.Errorf("invalid resolution %q: %w", aux.Resolution, err)
	}
	*d = Download{
		Comments:      aux.Comments,
		Resolution:    uint16(res),
		Torrent:       aux.Torrent,
		FileName:      aux.FileName,
		PublishedDate: aux.PublishedDate,
	}
	return nil
}

type downloadGroupJSON struct {
	Title      string     `json:"title"`
	Variant    Kind       `json:"variant"`
	Episode    *uint32    `json:"episode,omitempty"`
	Decimal    *uint32    `json:"decimal,omitempty"`
	Version    *uint32    `json:"version,omitempty"`
	Extra      *string    `json:"extra,omitempty"`
	StartIndex *uint32    `json:"start_index,omitempty"`
	EndIndex   *uint32    `json:"end_index,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Downloads  []Download `json:"downloads"`
}

// MarshalJSON flattens the variant fields into the group object.
func (g DownloadGroup) MarshalJSON() ([]byte, error) {
	if g.Variant == nil {
		return nil, fmt.Errorf("download group %q has no variant", g.Title)
	}

	aux := downloadGroupJSON{
		Title:     g.Title,
		Variant:   g.Variant.Kind(),
		CreatedAt: g.CreatedAt.UTC(),
		UpdatedAt: g.UpdatedAt.UTC(),
		Downloads: g.Downloads,
	}
	if aux.Downloads == nil {
		aux.Downloads = []Download{}
	}

	switch v := g.Variant.(type) {
	case Batch:
		aux.StartIndex = &v.Start
		aux.EndIndex = &v.End
	case Episode:
		n := v.Number
		aux.Episode = &n
		aux.Decimal = v.Decimal
		aux.Version = v.Version
		if v.Extra != "" {
			aux.Extra = &v.Extra
		}
	case Movie:
	default:
		return nil, fmt.Errorf("unhandled download variant %T", g.Variant)
	}

	return json.Marshal(aux)
}

func (g *DownloadGroup) UnmarshalJSON(data []byte) error {
	var aux downloadGroupJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var variant DownloadVariant
	switch aux.Variant {
	case KindBatch:
		if aux.StartIndex == nil || aux.EndIndex == nil {
			return fmt.Errorf("batch group %q missing index range", aux.Title)
		}
		variant = Batch{Start: *aux.StartIndex, End: *aux.EndIndex}
	case KindEpisode:
		if aux.Episode == nil {
			return fmt.Errorf("episode group %q missing episode number", aux.Title)
		}
		ep := Episode{Number: *aux.Episode, Decimal: aux.Decimal, Version: aux.Version}
		if aux.Extra != nil {
			ep.Extra = *aux.Extra
		}
		variant = ep
	case KindMovie:
		variant = Movie{}
	default:
		return fmt.Errorf("unknown download variant %q", aux.Variant)
	}

	*g = DownloadGroup{
		Title:     aux.Title,
		Variant:   variant,
		CreatedAt: aux.CreatedAt,
		UpdatedAt: aux.UpdatedAt,
		Downloads: aux.Downloads,
	}
	return nil
}
