package parser

import (
	"errors"
	"reflect"
	"testing"

	"github.com/anisub/anisub/internal/model"
)

func u32(v uint32) *uint32 { return &v }

func TestParseEpisodes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ParsedDownload
	}{
		{
			name: "plain episode",
			in:   "[SubsPlease] Tomo-chan wa Onnanoko! - 13 (540p) [671AF01D].mkv",
			want: ParsedDownload{
				Source:     "SubsPlease",
				Title:      "Tomo-chan wa Onnanoko!",
				Variant:    model.Episode{Number: 13},
				Resolution: 540,
			},
		},
		{
			name: "subtitled show",
			in:   "[SubsPlease] 16bit Sensation - Another Layer - 10 (1080p) [2A96C634].mkv",
			want: ParsedDownload{
				Source:     "SubsPlease",
				Title:      "16bit Sensation - Another Layer",
				Variant:    model.Episode{Number: 10},
				Resolution: 1080,
			},
		},
		{
			name: "title containing separator",
			in:   "[SubsPlease] Mobile Suit Gundam - The Witch from Mercury - 12 (1080p) [171D5A10].mkv",
			want: ParsedDownload{
				Source:     "SubsPlease",
				Title:      "Mobile Suit Gundam - The Witch from Mercury",
				Variant:    model.Episode{Number: 12},
				Resolution: 1080,
			},
		},
		{
			name: "versioned episode",
			in:   "[SubsPlease] Kimetsu no Yaiba - Katanakaji no Sato-hen - 01v2 (480p) [D0A69213].mkv",
			want: ParsedDownload{
				Source:     "SubsPlease",
				Title:      "Kimetsu no Yaiba - Katanakaji no Sato-hen",
				Variant:    model.Episode{Number: 1, Version: u32(2)},
				Resolution: 480,
			},
		},
		{
			name: "decimal episode",
			in:   "[SubsPlease] Dr. Stone S3 - 10.5 (720p) [08F67FE9].mkv",
			want: ParsedDownload{
				Source:     "SubsPlease",
				Title:      "Dr. Stone S3",
				Variant:    model.Episode{Number: 10, Decimal: u32(5)},
				Resolution: 720,
			},
		},
		{
			name: "full identifier with marker",
			in:   "[SubsPlease] Example Show - 10.5v2D (1080p) [00C0FFEE].mkv",
			want: ParsedDownload{
				Source:     "SubsPlease",
				Title:      "Example Show",
				Variant:    model.Episode{Number: 10, Decimal: u32(5), Version: u32(2), Extra: "D"},
				Resolution: 1080,
			},
		},
		{
			name: "version before decimal",
			in:   "[SubsPlease] Example Show - 10v2.5 (1080p) [00C0FFEE].mkv",
			want: ParsedDownload{
				Source:     "SubsPlease",
				Title:      "Example Show",
				Variant:    model.Episode{Number: 10, Decimal: u32(5), Version: u32(2)},
				Resolution: 1080,
			},
		},
		{
			name: "year token in title is not a resolution",
			in:   "[SubsPlease] Urusei Yatsura (2022) - 25 (1080p) [7C31ABBA].mkv",
			want: ParsedDownload{
				Source:     "SubsPlease",
				Title:      "Urusei Yatsura (2022)",
				Variant:    model.Episode{Number: 25},
				Resolution: 1080,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseBatch(t *testing.T) {
	got, err := Parse("[SubsPlease] Bocchi the Rock! (01-12) (1080p) [Batch]")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	want := ParsedDownload{
		Source:     "SubsPlease",
		Title:      "Bocchi the Rock!",
		Variant:    model.Batch{Start: 1, End: 12},
		Resolution: 1080,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse = %+v, want %+v", got, want)
	}
}

func TestParseBatchWithYearInTitle(t *testing.T) {
	got, err := Parse("[SubsPlease] Urusei Yatsura (2022) (01-23) (1080p) [Batch]")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got.Title != "Urusei Yatsura (2022)" {
		t.Errorf("title = %q, want %q", got.Title, "Urusei Yatsura (2022)")
	}
	if got.Variant != (model.Batch{Start: 1, End: 23}) {
		t.Errorf("variant = %+v, want batch 1-23", got.Variant)
	}
}

func TestParseMovie(t *testing.T) {
	got, err := Parse("[SubsPlease] Suzume no Tojimari (1080p) [DEADBEEF].mkv")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	want := ParsedDownload{
		Source:     "SubsPlease",
		Title:      "Suzume no Tojimari",
		Variant:    model.Movie{},
		Resolution: 1080,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse = %+v, want %+v", got, want)
	}
}

func TestParseMovieWithYearInTitle(t *testing.T) {
	got, err := Parse("[SubsPlease] Urusei Yatsura (2022) (1080p) [F3A40F62].mkv")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got.Title != "Urusei Yatsura (2022)" {
		t.Errorf("title = %q, want %q", got.Title, "Urusei Yatsura (2022)")
	}
	if got.Variant != (model.Movie{}) {
		t.Errorf("variant = %+v, want movie", got.Variant)
	}
	if got.Resolution != 1080 {
		t.Errorf("resolution = %d, want 1080", got.Resolution)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"no source tag", "Suzume no Tojimari (1080p) [DEADBEEF].mkv", ErrExpectedTag},
		{"no trailing tag", "[SubsPlease] Suzume no Tojimari (1080p)", ErrExpectedTag},
		{"no resolution", "[SubsPlease] Suzume no Tojimari [DEADBEEF].mkv", ErrNoResolution},
		{"non numeric resolution", "[SubsPlease] Suzume no Tojimari (Invalid) [DEADBEEF].mkv", ErrNoResolution},
		{"batch without range separator", "[SubsPlease] Bocchi the Rock! (0108) (1080p) [Batch]", ErrBatchRange},
		{"trailing junk", "[SubsPlease] Suzume no Tojimari (1080p) [DEADBEEF].mp4", ErrTrailing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse(%q) error = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestFilenameRoundTrip(t *testing.T) {
	parsed := []ParsedDownload{
		{Source: "SubsPlease", Title: "Example Show", Variant: model.Episode{Number: 5}, Resolution: 1080},
		{Source: "SubsPlease", Title: "Example Show", Variant: model.Episode{Number: 10, Decimal: u32(5), Version: u32(2), Extra: "D"}, Resolution: 720},
		{Source: "SubsPlease", Title: "Example Show", Variant: model.Batch{Start: 1, End: 12}, Resolution: 1080},
		{Source: "SubsPlease", Title: "Example Movie", Variant: model.Movie{}, Resolution: 480},
	}

	for _, p := range parsed {
		name := p.Filename()
		got, err := Parse(name)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", name, err)
		}
		if !reflect.DeepEqual(got, p) {
			t.Errorf("round trip through %q = %+v, want %+v", name, got, p)
		}
	}
}
