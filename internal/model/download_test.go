package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func u32(v uint32) *uint32 { return &v }

func TestDownloadGroupJSONFlattensVariant(t *testing.T) {
	published := time.Date(2025, 6, 7, 14, 2, 0, 0, time.UTC)
	g := DownloadGroup{
		Title:     "Example Show",
		Variant:   Episode{Number: 10, Decimal: u32(5), Version: u32(2), Extra: "D"},
		CreatedAt: published,
		UpdatedAt: published,
		Downloads: []Download{{
			Comments:      "https://nyaa.si/view/1",
			Resolution:    1080,
			Torrent:       "https://nyaa.si/download/1.torrent",
			FileName:      "[SubsPlease] Example Show - 10.5v2D (1080p) [AAAA0001].mkv",
			PublishedDate: published,
		}},
	}

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	body := string(data)
	for _, want := range []string{
		`"variant":"episode"`,
		`"episode":10`,
		`"decimal":5`,
		`"version":2`,
		`"extra":"D"`,
		`"resolution":"1080p"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("marshalled group missing %s: %s", want, body)
		}
	}
	if strings.Contains(body, "start_index") {
		t.Errorf("episode group carries batch fields: %s", body)
	}

	var back DownloadGroup
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(back, g) {
		t.Errorf("round trip = %+v, want %+v", back, g)
	}
}

func TestDownloadGroupJSONBatchAndMovie(t *testing.T) {
	now := time.Date(2025, 6, 7, 14, 0, 0, 0, time.UTC)

	batch := DownloadGroup{
		Title: "Example Show", Variant: Batch{Start: 1, End: 12},
		CreatedAt: now, UpdatedAt: now, Downloads: []Download{},
	}
	data, err := json.Marshal(batch)
	if err != nil {
		t.Fatalf("marshal batch failed: %v", err)
	}
	if !strings.Contains(string(data), `"start_index":1`) || !strings.Contains(string(data), `"end_index":12`) {
		t.Errorf("batch json = %s", data)
	}

	movie := DownloadGroup{
		Title: "Example Movie", Variant: Movie{},
		CreatedAt: now, UpdatedAt: now, Downloads: []Download{},
	}
	data, err = json.Marshal(movie)
	if err != nil {
		t.Fatalf("marshal movie failed: %v", err)
	}
	if !strings.Contains(string(data), `"variant":"movie"`) {
		t.Errorf("movie json = %s", data)
	}
	for _, forbidden := range []string{"episode", "start_index"} {
		if strings.Contains(string(data), forbidden) {
			t.Errorf("movie json carries %q: %s", forbidden, data)
		}
	}

	for _, g := range []DownloadGroup{batch, movie} {
		data, _ := json.Marshal(g)
		var back DownloadGroup
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if !reflect.DeepEqual(back, g) {
			t.Errorf("round trip = %+v, want %+v", back, g)
		}
	}
}

func TestDownloadGroupUnmarshalRejectsUnknownVariant(t *testing.T) {
	var g DownloadGroup
	err := json.Unmarshal([]byte(`{"title":"x","variant":"special","downloads":[]}`), &g)
	if err == nil {
		t.Fatal("unknown variant decoded without error")
	}
}

func TestDownloadGroupMarshalWithoutVariant(t *testing.T) {
	if _, err := json.Marshal(DownloadGroup{Title: "x"}); err == nil {
		t.Fatal("variantless group marshalled without error")
	}
}
