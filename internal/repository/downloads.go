// Package repository persists download groups in Postgres.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/anisub/anisub/internal/model"
)

const (
	// providerDefault tags every persisted group with its release source.
	providerDefault = "SubsPlease"

	// groupLimit bounds every listing query.
	groupLimit = 25
)

// QueryOptions narrows a group listing.
type QueryOptions struct {
	// Title filters groups by a case-insensitive substring match.
	Title string
}

// Downloads is the persistence layer for download groups.
type Downloads struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewDownloads(db *sql.DB, logger zerolog.Logger) *Downloads {
	return &Downloads{
		db:     db,
		logger: logger.With().Str("component", "repository").Logger(),
	}
}

// variantFields is the column form of a download variant.
type variantFields struct {
	kind       string
	episode    sql.NullInt64
	decimal    sql.NullInt64
	version    sql.NullInt64
	extra      sql.NullString
	startIndex sql.NullInt64
	endIndex   sql.NullInt64
}

func flattenVariant(v model.DownloadVariant) (variantFields, error) {
	var f variantFields
	switch v := v.(type) {
	case model.Batch:
		f.kind = string(model.KindBatch)
		f.startIndex = sql.NullInt64{Int64: int64(v.Start), Valid: true}
		f.endIndex = sql.NullInt64{Int64: int64(v.End), Valid: true}
	case model.Episode:
		f.kind = string(model.KindEpisode)
		f.episode = sql.NullInt64{Int64: int64(v.Number), Valid: true}
		if v.Decimal != nil {
			f.decimal = sql.NullInt64{Int64: int64(*v.Decimal), Valid: true}
		}
		if v.Version != nil {
			f.version = sql.NullInt64{Int64: int64(*v.Version), Valid: true}
		}
		if v.Extra != "" {
			f.extra = sql.NullString{String: v.Extra, Valid: true}
		}
	case model.Movie:
		f.kind = string(model.KindMovie)
	default:
		return f, fmt.Errorf("unhandled download variant %T", v)
	}
	return f, nil
}

func buildVariant(f variantFields) (model.DownloadVariant, error) {
	kind, err := model.ParseKind(f.kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case model.KindBatch:
		if !f.startIndex.Valid || !f.endIndex.Valid {
			return nil, errors.New("batch row is missing its index range")
		}
		return model.Batch{Start: uint32(f.startIndex.Int64), End: uint32(f.endIndex.Int64)}, nil
	case model.KindEpisode:
		if !f.episode.Valid {
			return nil, errors.New("episode row is missing its episode number")
		}
		ep := model.Episode{Number: uint32(f.episode.Int64)}
		if f.decimal.Valid {
			d := uint32(f.decimal.Int64)
			ep.Decimal = &d
		}
		if f.version.Valid {
			v := uint32(f.version.Int64)
			ep.Version = &v
		}
		if f.extra.Valid {
			ep.Extra = f.extra.String
		}
		return ep, nil
	default:
		return model.Movie{}, nil
	}
}

// InsertGroups upserts every group in one transaction. Either all groups
// land or none do. The returned ids parallel the input order.
func (r *Downloads) InsertGroups(ctx context.Context, groups []model.DownloadGroup) ([]uuid.UUID, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]uuid.UUID, 0, len(groups))
	for _, g := range groups {
		id, err := r.upsertGroup(ctx, tx, g)
		if err != nil {
			return nil, fmt.Errorf("upsert group %q: %w", g.Title, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return ids, nil
}

const selectGroupQuery = `
SELECT id, updated_at
FROM download
WHERE provider = $1 AND title = $2 AND variant = $3
  AND episode IS NOT DISTINCT FROM $4
  AND decimal IS NOT DISTINCT FROM $5
  AND version IS NOT DISTINCT FROM $6
  AND extra IS NOT DISTINCT FROM $7
  AND start_index IS NOT DISTINCT FROM $8
  AND end_index IS NOT DISTINCT FROM $9`

const insertGroupQuery = `
INSERT INTO download (id, provider, title, variant, episode, decimal, version, extra,
                      start_index, end_index, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const insertResolutionQuery = `
INSERT INTO download_resolution (id, download_id, resolution, torrent, file_name,
                                 comments, published_date)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// upsertGroup writes one group. An existing group only moves its updated_at
// forward, never back, and only resolutions it does not yet have are added.
func (r *Downloads) upsertGroup(ctx context.Context, tx *sql.Tx, g model.DownloadGroup) (uuid.UUID, error) {
	f, err := flattenVariant(g.Variant)
	if err != nil {
		return uuid.Nil, err
	}

	var (
		id        uuid.UUID
		updatedAt time.Time
	)
	err = tx.QueryRowContext(ctx, selectGroupQuery,
		providerDefault, g.Title, f.kind,
		f.episode, f.decimal, f.version, f.extra, f.startIndex, f.endIndex,
	).Scan(&id, &updatedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.New()
		if _, err := tx.ExecContext(ctx, insertGroupQuery,
			id, providerDefault, g.Title, f.kind,
			f.episode, f.decimal, f.version, f.extra, f.startIndex, f.endIndex,
			g.CreatedAt.UTC(), g.UpdatedAt.UTC(),
		); err != nil {
			return uuid.Nil, fmt.Errorf("insert group: %w", err)
		}
	case err != nil:
		return uuid.Nil, fmt.Errorf("select group: %w", err)
	default:
		if updatedAt.Before(g.UpdatedAt) {
			if _, err := tx.ExecContext(ctx,
				`UPDATE download SET updated_at = $2 WHERE id = $1`,
				id, g.UpdatedAt.UTC(),
			); err != nil {
				return uuid.Nil, fmt.Errorf("advance group timestamp: %w", err)
			}
		}
	}

	existing, err := r.storedResolutions(ctx, tx, id)
	if err != nil {
		return uuid.Nil, err
	}

	for _, d := range g.Downloads {
		if existing[d.Resolution] {
			continue
		}
		existing[d.Resolution] = true

		if _, err := tx.ExecContext(ctx, insertResolutionQuery,
			uuid.New(), id, int64(d.Resolution),
			d.Torrent, d.FileName, d.Comments, d.PublishedDate.UTC(),
		); err != nil {
			return uuid.Nil, fmt.Errorf("insert resolution %d: %w", d.Resolution, err)
		}
	}

	return id, nil
}

func (r *Downloads) storedResolutions(ctx context.Context, tx *sql.Tx, id uuid.UUID) (map[uint16]bool, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT resolution FROM download_resolution WHERE download_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("select resolutions: %w", err)
	}
	defer rows.Close()

	existing := make(map[uint16]bool)
	for rows.Next() {
		var res int64
		if err := rows.Scan(&res); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		existing[uint16(res)] = true
	}
	return existing, rows.Err()
}

// GetWithDownloads lists the most recently updated groups, newest first,
// with their downloads ordered by descending resolution. A nil kind means
// any variant.
func (r *Downloads) GetWithDownloads(ctx context.Context, kind *model.Kind, opts QueryOptions) ([]model.DownloadGroup, error) {
	query := `SELECT id, title, variant, episode, decimal, version, extra,
                     start_index, end_index, created_at, updated_at
              FROM download`

	var (
		conds []string
		args  []any
	)
	if kind != nil {
		args = append(args, string(*kind))
		conds = append(conds, fmt.Sprintf("variant = $%d", len(args)))
	}
	if opts.Title != "" {
		args = append(args, "%"+opts.Title+"%")
		conds = append(conds, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT %d", groupLimit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select groups: %w", err)
	}
	defer rows.Close()

	groups := make([]model.DownloadGroup, 0, groupLimit)
	var ids []uuid.UUID
	index := make(map[uuid.UUID]int)

	for rows.Next() {
		var (
			id uuid.UUID
			g  model.DownloadGroup
			f  variantFields
		)
		if err := rows.Scan(&id, &g.Title, &f.kind,
			&f.episode, &f.decimal, &f.version, &f.extra,
			&f.startIndex, &f.endIndex,
			&g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		if g.Variant, err = buildVariant(f); err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Title, err)
		}
		g.Downloads = []model.Download{}

		index[id] = len(groups)
		ids = append(ids, id)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	if len(groups) == 0 {
		return groups, nil
	}

	if err := r.attachDownloads(ctx, ids, index, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *Downloads) attachDownloads(ctx context.Context, ids []uuid.UUID, index map[uuid.UUID]int, groups []model.DownloadGroup) error {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT download_id, resolution, torrent, file_name, comments, published_date
                          FROM download_resolution
                          WHERE download_id IN (%s)
                          ORDER BY resolution DESC`, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("select downloads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  uuid.UUID
			res int64
			d   model.Download
		)
		if err := rows.Scan(&id, &res, &d.Torrent, &d.FileName, &d.Comments, &d.PublishedDate); err != nil {
			return fmt.Errorf("scan download: %w", err)
		}
		d.Resolution = uint16(res)

		i, ok := index[id]
		if !ok {
			continue
		}
		groups[i].Downloads = append(groups[i].Downloads, d)
	}
	return rows.Err()
}

// LastUpdated reports the newest updated_at across all groups. ok is false
// when the table is empty.
func (r *Downloads) LastUpdated(ctx context.Context) (time.Time, bool, error) {
	var t sql.NullTime
	err := r.db.QueryRowContext(ctx, `SELECT max(updated_at) FROM download`).Scan(&t)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("select last update: %w", err)
	}
	return t.Time, t.Valid, nil
}
