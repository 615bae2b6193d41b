package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/anisub/anisub/internal/database"
	"github.com/anisub/anisub/internal/model"
)

// newTestRepo connects to the database named by TEST_DATABASE_DSN and
// starts from empty tables. Tests are skipped when the variable is unset.
func newTestRepo(t *testing.T) *Downloads {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set, skipping database tests")
	}

	db, err := database.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	if _, err := db.Conn().Exec(`TRUNCATE download CASCADE`); err != nil {
		t.Fatalf("failed to reset test database: %v", err)
	}

	return NewDownloads(db.Conn(), zerolog.Nop())
}

func testGroup(updated time.Time, resolutions ...uint16) model.DownloadGroup {
	downloads := make([]model.Download, 0, len(resolutions))
	for _, res := range resolutions {
		downloads = append(downloads, model.Download{
			Comments:      "https://nyaa.si/view/1",
			Resolution:    res,
			Torrent:       "https://nyaa.si/download/1.torrent",
			FileName:      "[SubsPlease] Example Show - 03 (1080p) [AAAA0001].mkv",
			PublishedDate: updated,
		})
	}
	return model.DownloadGroup{
		Title:     "Example Show",
		Variant:   model.Episode{Number: 3},
		CreatedAt: updated,
		UpdatedAt: updated,
		Downloads: downloads,
	}
}

func TestInsertGroupsUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 7, 14, 0, 0, 0, time.UTC)

	ids, err := repo.InsertGroups(ctx, []model.DownloadGroup{testGroup(base, 1080)})
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("got %d ids, want 1", len(ids))
	}

	// Same group again with a newer timestamp and one extra resolution.
	again, err := repo.InsertGroups(ctx, []model.DownloadGroup{testGroup(base.Add(time.Hour), 1080, 720)})
	if err != nil {
		t.Fatalf("second insert failed: %v", err)
	}
	if again[0] != ids[0] {
		t.Errorf("upsert created a new group: %s != %s", again[0], ids[0])
	}

	groups, err := repo.GetWithDownloads(ctx, nil, QueryOptions{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}

	g := groups[0]
	if !g.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("updated_at = %v, want %v", g.UpdatedAt, base.Add(time.Hour))
	}
	if len(g.Downloads) != 2 {
		t.Fatalf("got %d downloads, want 2", len(g.Downloads))
	}
	// Descending resolution order.
	if g.Downloads[0].Resolution != 1080 || g.Downloads[1].Resolution != 720 {
		t.Errorf("resolutions = %d, %d", g.Downloads[0].Resolution, g.Downloads[1].Resolution)
	}
}

func TestUpsertNeverMovesTimestampBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 7, 14, 0, 0, 0, time.UTC)

	if _, err := repo.InsertGroups(ctx, []model.DownloadGroup{testGroup(base, 1080)}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := repo.InsertGroups(ctx, []model.DownloadGroup{testGroup(base.Add(-time.Hour), 720)}); err != nil {
		t.Fatalf("older insert failed: %v", err)
	}

	groups, err := repo.GetWithDownloads(ctx, nil, QueryOptions{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !groups[0].UpdatedAt.Equal(base) {
		t.Errorf("updated_at = %v, want unchanged %v", groups[0].UpdatedAt, base)
	}
	// The older sighting still contributes its new resolution.
	if len(groups[0].Downloads) != 2 {
		t.Errorf("got %d downloads, want 2", len(groups[0].Downloads))
	}
}

func TestGetWithDownloadsFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 7, 14, 0, 0, 0, time.UTC)

	episode := testGroup(base, 1080)
	movie := model.DownloadGroup{
		Title:     "Example Movie",
		Variant:   model.Movie{},
		CreatedAt: base.Add(time.Minute),
		UpdatedAt: base.Add(time.Minute),
		Downloads: []model.Download{{
			Resolution:    1080,
			Torrent:       "https://nyaa.si/download/2.torrent",
			Comments:      "https://nyaa.si/view/2",
			FileName:      "[SubsPlease] Example Movie (1080p) [AAAA0002].mkv",
			PublishedDate: base.Add(time.Minute),
		}},
	}
	if _, err := repo.InsertGroups(ctx, []model.DownloadGroup{episode, movie}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	kind := model.KindMovie
	movies, err := repo.GetWithDownloads(ctx, &kind, QueryOptions{})
	if err != nil {
		t.Fatalf("variant query failed: %v", err)
	}
	if len(movies) != 1 || movies[0].Title != "Example Movie" {
		t.Errorf("movie filter returned %+v", movies)
	}

	matched, err := repo.GetWithDownloads(ctx, nil, QueryOptions{Title: "show"})
	if err != nil {
		t.Fatalf("title query failed: %v", err)
	}
	if len(matched) != 1 || matched[0].Title != "Example Show" {
		t.Errorf("title filter returned %+v", matched)
	}

	all, err := repo.GetWithDownloads(ctx, nil, QueryOptions{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	// Newest first.
	if len(all) != 2 || all[0].Title != "Example Movie" {
		t.Errorf("listing order = %+v", all)
	}
}

func TestLastUpdated(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, ok, err := repo.LastUpdated(ctx); err != nil || ok {
		t.Fatalf("LastUpdated on empty table = ok=%v err=%v", ok, err)
	}

	base := time.Date(2025, 6, 7, 14, 0, 0, 0, time.UTC)
	if _, err := repo.InsertGroups(ctx, []model.DownloadGroup{testGroup(base, 1080)}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	last, ok, err := repo.LastUpdated(ctx)
	if err != nil || !ok {
		t.Fatalf("LastUpdated = ok=%v err=%v", ok, err)
	}
	if !last.Equal(base) {
		t.Errorf("last updated = %v, want %v", last, base)
	}
}
