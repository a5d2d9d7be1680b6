package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/teris-io/shortid"

	"github.com/psiquelab/portal/internal/backend"
	"github.com/psiquelab/portal/internal/types"
)

func (db *PgRepository) GetProfile(ctx context.Context, userId uuid.UUID) (types.Profile, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT user_id, name, full_name FROM profiles "+
			"WHERE user_id = $1 LIMIT 1",
		userId,
	)

	var p types.Profile
	var name, fullName sql.NullString
	if err := row.Scan(&p.UserId, &name, &fullName); err != nil {
		return types.Profile{}, backend.NewQueryError("profiles", err)
	}
	p.Name = name.String
	p.FullName = fullName.String

	return p, nil
}

func (db *PgRepository) ListGrants(ctx context.Context, userId uuid.UUID) ([]types.TierRef, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT t.id, t.name FROM tier_grants g "+
			"JOIN tiers t ON t.id = g.tier_id "+
			"WHERE g.account_id = $1 ORDER BY t.id",
		userId,
	)
	if err != nil {
		return nil, backend.NewQueryError("tier_grants", err)
	}
	defer rows.Close()

	var grants []types.TierRef
	for rows.Next() {
		var t types.TierRef
		if err := rows.Scan(&t.Id, &t.Name); err != nil {
			return nil, backend.NewQueryError("tier_grants", err)
		}
		grants = append(grants, t)
	}

	if err := rows.Err(); err != nil {
		return nil, backend.NewQueryError("tier_grants", err)
	}
	return grants, nil
}

func tierIds(tiers []types.TierRef) []int64 {
	ids := make([]int64, len(tiers))
	for i, t := range tiers {
		ids[i] = int64(t.Id)
	}
	return ids
}

func (db *PgRepository) ListContent(ctx context.Context, tiers []types.TierRef) ([]types.ContentItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, tier_id, order_index, title, description, media_url, created_at "+
			"FROM content_items WHERE tier_id = ANY($1) "+
			"ORDER BY order_index ASC",
		pq.Array(tierIds(tiers)),
	)
	if err != nil {
		return nil, backend.NewQueryError("content_items", err)
	}
	defer rows.Close()

	var items []types.ContentItem
	for rows.Next() {
		var it types.ContentItem
		var desc sql.NullString
		if err := rows.Scan(&it.Id, &it.TierId, &it.OrderIndex, &it.Title, &desc, &it.MediaURL, &it.CreatedAt); err != nil {
			return nil, backend.NewQueryError("content_items", err)
		}
		it.Description = desc.String
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, backend.NewQueryError("content_items", err)
	}
	return items, nil
}

func (db *PgRepository) ListFiles(ctx context.Context, tiers []types.TierRef) ([]types.FileItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, tier_id, name, description, file_url, created_at "+
			"FROM files WHERE tier_id = ANY($1) "+
			"ORDER BY created_at DESC",
		pq.Array(tierIds(tiers)),
	)
	if err != nil {
		return nil, backend.NewQueryError("files", err)
	}
	defer rows.Close()

	var files []types.FileItem
	for rows.Next() {
		var f types.FileItem
		var desc sql.NullString
		if err := rows.Scan(&f.Id, &f.TierId, &f.Name, &desc, &f.FileURL, &f.CreatedAt); err != nil {
			return nil, backend.NewQueryError("files", err)
		}
		f.Description = desc.String
		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, backend.NewQueryError("files", err)
	}
	return files, nil
}

func (db *PgRepository) ListCompleted(ctx context.Context, userId uuid.UUID) ([]types.ItemID, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT item_id FROM completions "+
			"WHERE account_id = $1 AND completed = TRUE",
		userId,
	)
	if err != nil {
		return nil, backend.NewQueryError("completions", err)
	}
	defer rows.Close()

	var ids []types.ItemID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, backend.NewQueryError("completions", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, backend.NewQueryError("completions", err)
	}
	return ids, nil
}

// UpsertCompletion collapses retried submissions into one record keyed on
// (account_id, item_id). A completed row never flips back to incomplete;
// the timestamp is last-write-wins.
func (db *PgRepository) UpsertCompletion(ctx context.Context, rec types.CompletionRecord) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO completions (account_id, item_id, completed, completed_at) "+
			"VALUES ($1, $2, $3, $4) "+
			"ON CONFLICT (account_id, item_id) DO UPDATE SET "+
			"completed = completions.completed OR EXCLUDED.completed, "+
			"completed_at = EXCLUDED.completed_at",
		rec.UserId,
		rec.ItemId,
		rec.Completed,
		rec.CompletedAt,
	)
	if err != nil {
		return backend.NewPersistenceError("completions", err)
	}

	return nil
}

func (db *PgRepository) ListMessages(ctx context.Context, limit int) ([]types.ChatMessage, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, external_id, account_id, author_name, body, created_at FROM ("+
			"SELECT id, external_id, account_id, author_name, body, created_at "+
			"FROM messages ORDER BY created_at DESC, id DESC LIMIT $1"+
			") recent ORDER BY created_at ASC, id ASC",
		limit,
	)
	if err != nil {
		return nil, backend.NewQueryError("messages", err)
	}
	defer rows.Close()

	var msgs []types.ChatMessage
	for rows.Next() {
		var m types.ChatMessage
		if err := rows.Scan(&m.Id, &m.ExternalId, &m.AuthorId, &m.AuthorName, &m.Body, &m.CreatedAt); err != nil {
			return nil, backend.NewQueryError("messages", err)
		}
		msgs = append(msgs, m)
	}

	if err := rows.Err(); err != nil {
		return nil, backend.NewQueryError("messages", err)
	}
	return msgs, nil
}

func (db *PgRepository) CreateMessage(ctx context.Context, userId uuid.UUID, body string) (types.ChatMessage, error) {
	externalId, err := shortid.Generate()
	if err != nil {
		return types.ChatMessage{}, backend.NewPersistenceError("messages", err)
	}

	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO messages (external_id, account_id, author_name, body) "+
			"SELECT $1, a.id, "+
			"COALESCE(NULLIF(p.full_name, ''), NULLIF(p.name, ''), split_part(a.email, '@', 1)), $3 "+
			"FROM accounts a LEFT JOIN profiles p ON p.user_id = a.id "+
			"WHERE a.id = $2 "+
			"RETURNING id, external_id, account_id, author_name, body, created_at",
		externalId,
		userId,
		body,
	)

	var m types.ChatMessage
	if err := row.Scan(&m.Id, &m.ExternalId, &m.AuthorId, &m.AuthorName, &m.Body, &m.CreatedAt); err != nil {
		return types.ChatMessage{}, backend.NewPersistenceError("messages", err)
	}

	return m, nil
}
