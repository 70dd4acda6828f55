package postgres

// allMigrations returns the embedded migrations in version order.
func allMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_leaderboard",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create leaderboard table
-- Version: 001

-- One row per guild member. Rank order is (total_xp DESC, seq ASC): seq is
-- a monotonic insertion sequence, so members tied on total XP keep the order
-- they entered the leaderboard in.
CREATE TABLE IF NOT EXISTS leaderboard (
    guild_id BIGINT NOT NULL,
    member_id BIGINT NOT NULL,
    member_name VARCHAR(100) NOT NULL,
    member_level INTEGER NOT NULL DEFAULT 0,
    member_xp INTEGER NOT NULL DEFAULT 0,
    member_total_xp INTEGER NOT NULL DEFAULT 0,
    seq BIGSERIAL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (guild_id, member_id),

    -- Constraints for data integrity
    CONSTRAINT valid_level CHECK (member_level >= 0 AND member_level <= 100),
    CONSTRAINT valid_xp CHECK (member_xp >= 0),
    CONSTRAINT valid_total_xp CHECK (member_total_xp >= 0),
    CONSTRAINT xp_within_total CHECK (member_xp <= member_total_xp)
);

-- Rank-order index: covers the leaderboard and rank resolution queries
CREATE INDEX IF NOT EXISTS idx_leaderboard_rank
    ON leaderboard(guild_id, member_total_xp DESC, seq ASC);

-- Per-guild name lookups for the name sort order
CREATE INDEX IF NOT EXISTS idx_leaderboard_name
    ON leaderboard(guild_id, member_name);

-- updated_at trigger
CREATE OR REPLACE FUNCTION update_leaderboard_updated_at()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trigger_leaderboard_updated_at ON leaderboard;
CREATE TRIGGER trigger_leaderboard_updated_at
    BEFORE UPDATE ON leaderboard
    FOR EACH ROW
    EXECUTE FUNCTION update_leaderboard_updated_at();
`

const migration001Down = `
DROP TRIGGER IF EXISTS trigger_leaderboard_updated_at ON leaderboard;
DROP FUNCTION IF EXISTS update_leaderboard_updated_at();
DROP TABLE IF EXISTS leaderboard;
`
