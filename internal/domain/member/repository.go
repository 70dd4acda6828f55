package member

import (
	"context"

	"github.com/guildxp/guildxp/internal/domain/shared"
)

// ListOptions controls ordering and truncation of a guild scan.
type ListOptions struct {
	// SortKey selects the ordering; zero value means SortByRank.
	SortKey SortKey

	// Limit truncates the result to the first N entries after sorting.
	// Zero means no limit.
	Limit int
}

// Validate checks the options before they reach the store.
func (o ListOptions) Validate() error {
	if o.SortKey != "" && !o.SortKey.IsValid() {
		return ErrInvalidSortKey
	}
	if o.Limit < 0 {
		return ErrInvalidLimit
	}
	return nil
}

// Repository is the persistence port for member records. Implementations
// must assign Record.Seq on insert so rank tie-breaks follow insertion
// order, and must fail fast with a distinguishable "not connected" error
// before any read or write when the store is unavailable.
type Repository interface {
	// Get returns the record for a (guild, member) pair.
	// Returns ErrRecordNotFound if none exists.
	Get(ctx context.Context, key shared.RecordKey) (*Record, error)

	// Insert creates a new record. Returns ErrRecordAlreadyExists if the
	// key is taken.
	Insert(ctx context.Context, rec *Record) error

	// Update persists mutations of an existing record.
	// Returns ErrRecordNotFound if the record vanished.
	Update(ctx context.Context, rec *Record) error

	// Delete removes one record. Deleting a missing record is not an
	// error: implementations return (false, nil) so the operation stays
	// idempotent, and callers decide whether absence matters.
	Delete(ctx context.Context, key shared.RecordKey) (bool, error)

	// ListByGuild returns the guild's records, ordered and limited per opts.
	ListByGuild(ctx context.Context, guildID shared.GuildID, opts ListOptions) ([]*Record, error)

	// ListAll returns every record in every guild, in insertion order.
	ListAll(ctx context.Context) ([]*Record, error)

	// Count returns the number of records in one guild, or across all
	// guilds when guildID is nil.
	Count(ctx context.Context, guildID *shared.GuildID) (int64, error)

	// ResetGuild zeroes XP and level for every record in a guild without
	// deleting rows. Returns the number of records touched.
	ResetGuild(ctx context.Context, guildID shared.GuildID) (int64, error)

	// DeleteByGuild removes every record in a guild. Returns the number of
	// rows deleted.
	DeleteByGuild(ctx context.Context, guildID shared.GuildID) (int64, error)

	// DeleteAll removes every record in every guild. Returns the number of
	// rows deleted.
	DeleteAll(ctx context.Context) (int64, error)

	// DeleteStale removes a guild's records whose member IDs are not in
	// keep. Returns the number of rows deleted.
	DeleteStale(ctx context.Context, guildID shared.GuildID, keep []shared.MemberID) (int64, error)
}
