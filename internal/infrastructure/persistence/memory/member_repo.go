// Package memory provides an in-memory member.Repository. It backs unit
// tests and local development runs where Postgres is not available.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/shared"
)

// MemberRepository is a map-backed member.Repository. Safe for concurrent
// use. Seq assignment follows insertion order, matching the Postgres
// implementation's tie-break semantics.
type MemberRepository struct {
	mu      sync.RWMutex
	records map[shared.RecordKey]*member.Record
	nextSeq int64
}

// NewMemberRepository creates an empty repository.
func NewMemberRepository() *MemberRepository {
	return &MemberRepository{
		records: make(map[shared.RecordKey]*member.Record),
		nextSeq: 1,
	}
}

// Get returns the record for a (guild, member) pair.
func (r *MemberRepository) Get(ctx context.Context, key shared.RecordKey) (*member.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[key]
	if !ok {
		return nil, member.ErrRecordNotFound
	}
	return cloneRecord(rec), nil
}

// Insert creates a new record, assigning its Seq.
func (r *MemberRepository) Insert(ctx context.Context, rec *member.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := rec.Key()
	if _, exists := r.records[key]; exists {
		return member.ErrRecordAlreadyExists
	}

	rec.Seq = r.nextSeq
	r.nextSeq++
	r.records[key] = cloneRecord(rec)
	return nil
}

// Update persists mutations of an existing record.
func (r *MemberRepository) Update(ctx context.Context, rec *member.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := rec.Key()
	if _, exists := r.records[key]; !exists {
		return member.ErrRecordNotFound
	}
	r.records[key] = cloneRecord(rec)
	return nil
}

// Delete removes one record.
func (r *MemberRepository) Delete(ctx context.Context, key shared.RecordKey) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[key]; !exists {
		return false, nil
	}
	delete(r.records, key)
	return true, nil
}

// ListByGuild returns the guild's records, ordered and limited per opts.
func (r *MemberRepository) ListByGuild(ctx context.Context, guildID shared.GuildID, opts member.ListOptions) ([]*member.Record, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	var out []*member.Record
	for _, rec := range r.records {
		if rec.GuildID == guildID {
			out = append(out, cloneRecord(rec))
		}
	}
	r.mu.RUnlock()

	sortRecords(out, opts.SortKey)

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// ListAll returns every record in insertion order.
func (r *MemberRepository) ListAll(ctx context.Context) ([]*member.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*member.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Count returns the number of records in one guild or overall.
func (r *MemberRepository) Count(ctx context.Context, guildID *shared.GuildID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if guildID == nil {
		return int64(len(r.records)), nil
	}

	var n int64
	for _, rec := range r.records {
		if rec.GuildID == *guildID {
			n++
		}
	}
	return n, nil
}

// ResetGuild zeroes XP and level for every record in a guild.
func (r *MemberRepository) ResetGuild(ctx context.Context, guildID shared.GuildID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, rec := range r.records {
		if rec.GuildID == guildID {
			rec.Reset()
			n++
		}
	}
	return n, nil
}

// DeleteByGuild removes every record in a guild.
func (r *MemberRepository) DeleteByGuild(ctx context.Context, guildID shared.GuildID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, rec := range r.records {
		if rec.GuildID == guildID {
			delete(r.records, key)
			n++
		}
	}
	return n, nil
}

// DeleteAll removes every record.
func (r *MemberRepository) DeleteAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int64(len(r.records))
	r.records = make(map[shared.RecordKey]*member.Record)
	return n, nil
}

// DeleteStale removes a guild's records whose member IDs are not in keep.
func (r *MemberRepository) DeleteStale(ctx context.Context, guildID shared.GuildID, keep []shared.MemberID) (int64, error) {
	keepSet := make(map[shared.MemberID]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, rec := range r.records {
		if rec.GuildID != guildID {
			continue
		}
		if _, ok := keepSet[rec.MemberID]; !ok {
			delete(r.records, key)
			n++
		}
	}
	return n, nil
}

// sortRecords orders records the way the Postgres store does: rank and XP
// orders share the seq tie-break.
func sortRecords(records []*member.Record, key member.SortKey) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch key {
		case member.SortByName:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		case member.SortByLevel:
			if a.Level != b.Level {
				return a.Level > b.Level
			}
		case member.SortByXP:
			if a.XP != b.XP {
				return a.XP > b.XP
			}
		default:
			if a.TotalXP != b.TotalXP {
				return a.TotalXP > b.TotalXP
			}
		}
		return a.Seq < b.Seq
	})
}

func cloneRecord(rec *member.Record) *member.Record {
	copied := *rec
	return &copied
}
