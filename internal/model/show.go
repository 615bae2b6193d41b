package model

import "time"

// ShowImages is the set of image renditions Kitsu publishes for a show.
// Not every rendition exists for every show.
type ShowImages struct {
	Tiny     string `json:"tiny,omitempty"`
	Small    string `json:"small,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Large    string `json:"large,omitempty"`
	Original string `json:"original,omitempty"`
}

// Show is the catalog entry served by the shows endpoints. It is a
// flattened view over the Kitsu JSON:API resource.
type Show struct {
	ID             uint32      `json:"id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Slug           string      `json:"slug"`
	Synopsis       string      `json:"synopsis"`
	Description    string      `json:"description"`
	CanonicalTitle string      `json:"canonical_title"`
	StartDate      string      `json:"start_date,omitempty"`
	EndDate        string      `json:"end_date,omitempty"`
	PosterImage    *ShowImages `json:"poster_image,omitempty"`
	CoverImage     *ShowImages `json:"cover_image,omitempty"`
	EpisodeCount   *uint32     `json:"episode_count,omitempty"`
	EpisodeLength  *uint32     `json:"episode_length,omitempty"`
	TotalLength    *uint32     `json:"total_length,omitempty"`
	YoutubeVideoID string      `json:"youtube_video_id,omitempty"`
	NSFW           bool        `json:"nsfw"`
}
