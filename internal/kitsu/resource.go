package kitsu

import (
	"fmt"
	"strconv"
	"time"

	"github.com/anisub/anisub/internal/model"
)

// resource is the JSON:API shape of a catalog anime entry, narrowed to the
// attributes the show model carries.
type resource struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Attributes attributes `json:"attributes"`
}

type attributes struct {
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Slug           string    `json:"slug"`
	Synopsis       string    `json:"synopsis"`
	Description    string    `json:"description"`
	CanonicalTitle string    `json:"canonicalTitle"`
	StartDate      string    `json:"startDate"`
	EndDate        string    `json:"endDate"`
	PosterImage    *imageSet `json:"posterImage"`
	CoverImage     *imageSet `json:"coverImage"`
	EpisodeCount   *uint32   `json:"episodeCount"`
	EpisodeLength  *uint32   `json:"episodeLength"`
	TotalLength    *uint32   `json:"totalLength"`
	YoutubeVideoID string    `json:"youtubeVideoId"`
	NSFW           bool      `json:"nsfw"`
}

type imageSet struct {
	Tiny     string `json:"tiny"`
	Small    string `json:"small"`
	Medium   string `json:"medium"`
	Large    string `json:"large"`
	Original string `json:"original"`
}

func (r resource) toShow() (model.Show, error) {
	id, err := strconv.ParseUint(r.ID, 10, 32)
	if err != nil {
		return model.Show{}, fmt.Errorf("catalog entry has non-numeric id %q: %w", r.ID, err)
	}

	attr := r.Attributes
	return model.Show{
		ID:             uint32(id),
		CreatedAt:      attr.CreatedAt,
		UpdatedAt:      attr.UpdatedAt,
		Slug:           attr.Slug,
		Synopsis:       attr.Synopsis,
		Description:    attr.Description,
		CanonicalTitle: attr.CanonicalTitle,
		StartDate:      attr.StartDate,
		EndDate:        attr.EndDate,
		PosterImage:    attr.PosterImage.toModel(),
		CoverImage:     attr.CoverImage.toModel(),
		EpisodeCount:   attr.EpisodeCount,
		EpisodeLength:  attr.EpisodeLength,
		TotalLength:    attr.TotalLength,
		YoutubeVideoID: attr.YoutubeVideoID,
		NSFW:           attr.NSFW,
	}, nil
}

func (s *imageSet) toModel() *model.ShowImages {
	if s == nil {
		return nil
	}
	return &model.ShowImages{
		Tiny:     s.Tiny,
		Small:    s.Small,
		Medium:   s.Medium,
		Large:    s.Large,
		Original: s.Original,
	}
}
