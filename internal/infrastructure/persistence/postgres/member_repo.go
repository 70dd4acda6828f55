// Package postgres implements the PostgreSQL persistence layer for GuildXP.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MEMBER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ErrImproperSchema indicates the leaderboard table exists but does not have
// the expected columns, usually after connecting to the wrong database.
var ErrImproperSchema = errors.New("postgres: leaderboard table has an unexpected schema")

// expectedColumns are the leaderboard columns VerifySchema checks for.
var expectedColumns = []string{
	"guild_id",
	"member_id",
	"member_name",
	"member_level",
	"member_xp",
	"member_total_xp",
	"seq",
}

// MemberRepository implements member.Repository for PostgreSQL.
type MemberRepository struct {
	conn *Connection
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(conn *Connection) *MemberRepository {
	return &MemberRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Get returns one member's record.
func (r *MemberRepository) Get(ctx context.Context, key shared.RecordKey) (*member.Record, error) {
	query := `
		SELECT guild_id, member_id, member_name, member_level, member_xp,
			   member_total_xp, seq, created_at, updated_at
		FROM leaderboard
		WHERE guild_id = $1 AND member_id = $2
	`

	row := r.conn.QueryRow(ctx, query, key.GuildID.Int64(), key.MemberID.Int64())
	return r.scanRecord(row)
}

// Insert creates a new record. The database assigns the insertion sequence
// and timestamps, which are written back into rec.
func (r *MemberRepository) Insert(ctx context.Context, rec *member.Record) error {
	query := `
		INSERT INTO leaderboard (
			guild_id, member_id, member_name, member_level, member_xp, member_total_xp
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq, created_at, updated_at
	`

	err := r.conn.QueryRow(ctx, query,
		rec.GuildID.Int64(),
		rec.MemberID.Int64(),
		rec.Name,
		rec.Level,
		rec.XP,
		rec.TotalXP,
	).Scan(&rec.Seq, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return member.ErrRecordAlreadyExists
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

// Update persists an existing record. Seq is never changed, so an updated
// member keeps their tie-break position.
func (r *MemberRepository) Update(ctx context.Context, rec *member.Record) error {
	query := `
		UPDATE leaderboard
		SET member_name = $3, member_level = $4, member_xp = $5, member_total_xp = $6
		WHERE guild_id = $1 AND member_id = $2
	`

	tag, err := r.conn.Exec(ctx, query,
		rec.GuildID.Int64(),
		rec.MemberID.Int64(),
		rec.Name,
		rec.Level,
		rec.XP,
		rec.TotalXP,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return member.ErrRecordNotFound
	}

	return nil
}

// Delete removes one record. A missing record is not an error; the bool
// reports whether a row was actually deleted.
func (r *MemberRepository) Delete(ctx context.Context, key shared.RecordKey) (bool, error) {
	query := `DELETE FROM leaderboard WHERE guild_id = $1 AND member_id = $2`

	tag, err := r.conn.Exec(ctx, query, key.GuildID.Int64(), key.MemberID.Int64())
	if err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// List Operations
// ─────────────────────────────────────────────────────────────────────────────

// ListByGuild returns a guild's records in the requested order.
func (r *MemberRepository) ListByGuild(ctx context.Context, guildID shared.GuildID, opts member.ListOptions) ([]*member.Record, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	query := `
		SELECT guild_id, member_id, member_name, member_level, member_xp,
			   member_total_xp, seq, created_at, updated_at
		FROM leaderboard
		WHERE guild_id = $1
		ORDER BY ` + orderClause(opts.SortKey)

	args := []interface{}{guildID.Int64()}
	if opts.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, opts.Limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list guild records: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// ListAll returns every record in every guild, in insertion order.
func (r *MemberRepository) ListAll(ctx context.Context) ([]*member.Record, error) {
	query := `
		SELECT guild_id, member_id, member_name, member_level, member_xp,
			   member_total_xp, seq, created_at, updated_at
		FROM leaderboard
		ORDER BY seq ASC
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// Count returns the number of records in one guild, or across all guilds
// when guildID is nil.
func (r *MemberRepository) Count(ctx context.Context, guildID *shared.GuildID) (int64, error) {
	var (
		count int64
		err   error
	)
	if guildID != nil {
		err = r.conn.QueryRow(ctx,
			`SELECT COUNT(*) FROM leaderboard WHERE guild_id = $1`,
			guildID.Int64(),
		).Scan(&count)
	} else {
		err = r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM leaderboard`).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}

	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Bulk Operations
// ─────────────────────────────────────────────────────────────────────────────

// ResetGuild zeroes XP and level for every record in a guild. Records and
// their insertion sequence survive.
func (r *MemberRepository) ResetGuild(ctx context.Context, guildID shared.GuildID) (int64, error) {
	query := `
		UPDATE leaderboard
		SET member_level = 0, member_xp = 0, member_total_xp = 0
		WHERE guild_id = $1
	`

	tag, err := r.conn.Exec(ctx, query, guildID.Int64())
	if err != nil {
		return 0, fmt.Errorf("failed to reset guild: %w", err)
	}

	return tag.RowsAffected(), nil
}

// DeleteByGuild removes every record in a guild.
func (r *MemberRepository) DeleteByGuild(ctx context.Context, guildID shared.GuildID) (int64, error) {
	tag, err := r.conn.Exec(ctx, `DELETE FROM leaderboard WHERE guild_id = $1`, guildID.Int64())
	if err != nil {
		return 0, fmt.Errorf("failed to delete guild records: %w", err)
	}

	return tag.RowsAffected(), nil
}

// DeleteAll removes every record in every guild.
func (r *MemberRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.conn.Exec(ctx, `DELETE FROM leaderboard`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete all records: %w", err)
	}

	return tag.RowsAffected(), nil
}

// DeleteStale removes a guild's records whose member IDs are not in keep.
func (r *MemberRepository) DeleteStale(ctx context.Context, guildID shared.GuildID, keep []shared.MemberID) (int64, error) {
	ids := make([]int64, len(keep))
	for i, id := range keep {
		ids[i] = id.Int64()
	}

	query := `
		DELETE FROM leaderboard
		WHERE guild_id = $1 AND NOT (member_id = ANY($2))
	`

	tag, err := r.conn.Exec(ctx, query, guildID.Int64(), ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale records: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Schema Verification
// ─────────────────────────────────────────────────────────────────────────────

// VerifySchema checks that the leaderboard table carries the expected
// columns. Returns ErrImproperSchema when the table exists with a different
// shape, which distinguishes a bad database from a fresh one.
func (r *MemberRepository) VerifySchema(ctx context.Context) error {
	query := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_name = 'leaderboard'
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan column name: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}

	if len(present) == 0 {
		// Table missing entirely; migrations have not run yet.
		return nil
	}

	for _, col := range expectedColumns {
		if !present[col] {
			return fmt.Errorf("%w: missing column %q", ErrImproperSchema, col)
		}
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// orderClause maps a sort key to its ORDER BY expression. Rank and XP
// orders share the seq tie-break so equal totals keep insertion order.
func orderClause(key member.SortKey) string {
	switch key {
	case member.SortByName:
		return "member_name ASC, seq ASC"
	case member.SortByLevel:
		return "member_level DESC, seq ASC"
	case member.SortByXP:
		return "member_xp DESC, seq ASC"
	default:
		return "member_total_xp DESC, seq ASC"
	}
}

// scanRecord scans a single record row.
func (r *MemberRepository) scanRecord(row pgx.Row) (*member.Record, error) {
	var (
		rec      member.Record
		guildID  int64
		memberID int64
	)

	err := row.Scan(
		&guildID,
		&memberID,
		&rec.Name,
		&rec.Level,
		&rec.XP,
		&rec.TotalXP,
		&rec.Seq,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, member.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.GuildID = shared.GuildID(guildID)
	rec.MemberID = shared.MemberID(memberID)

	return &rec, nil
}

// scanRecords scans a record result set.
func (r *MemberRepository) scanRecords(rows pgx.Rows) ([]*member.Record, error) {
	var records []*member.Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read record rows: %w", err)
	}

	return records, nil
}
