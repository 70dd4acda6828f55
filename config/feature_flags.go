package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles with gradual rollout and per-guild
// and per-member overrides. Flags gate optional behavior so a feature can
// be shipped dark and enabled guild by guild.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	memberOverrides map[int64]map[string]bool // member ID -> feature -> enabled
	guildOverrides  map[int64]map[string]bool // guild ID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Members are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	MemberID int64
	GuildID  int64
	IsAdmin  bool
}

// Predefined feature flag names.
const (
	// === Leveling Features ===
	FeatureLevelingAnnouncements = "leveling.announcements" // Level-up messages
	FeatureLevelingRoleAwards    = "leveling.role_awards"   // Grant roles at level milestones
	FeatureLevelingBonusXP       = "leveling.bonus_xp"      // Role-based bonus XP

	// === Leaderboard Features ===
	FeatureLeaderboardViewCache = "leaderboard.view_cache" // Serve views from Redis
	FeatureLeaderboardNeighbors = "leaderboard.neighbors"  // Rank window around a member

	// === System Features ===
	FeatureSystemImportExport  = "system.import_export" // Bulk import/export commands
	FeatureSystemExportBackup  = "system.export_backup" // Scheduled snapshot job
	FeatureSystemNameRefresh   = "system.name_refresh"  // Periodic member name sync
	FeatureSystemStaleCleanup  = "system.stale_cleanup" // Purge records of departed members

	// === Experimental Features ===
	FeatureExperimentalGlobalLeaderboard = "experimental.global_leaderboard" // Cross-guild ranking
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:        make(map[string]*Feature),
		memberOverrides: make(map[int64]map[string]bool),
		guildOverrides:  make(map[int64]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureLevelingAnnouncements] = &Feature{
		Name:           FeatureLevelingAnnouncements,
		Description:    "Send level-up announcements",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLevelingRoleAwards] = &Feature{
		Name:           FeatureLevelingRoleAwards,
		Description:    "Grant award roles at level milestones",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLevelingBonusXP] = &Feature{
		Name:           FeatureLevelingBonusXP,
		Description:    "Apply role-based bonus XP",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardViewCache] = &Feature{
		Name:           FeatureLeaderboardViewCache,
		Description:    "Serve leaderboard views from the Redis cache",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardNeighbors] = &Feature{
		Name:           FeatureLeaderboardNeighbors,
		Description:    "Show the rank window around a member",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSystemImportExport] = &Feature{
		Name:           FeatureSystemImportExport,
		Description:    "Allow bulk import and export of records",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSystemExportBackup] = &Feature{
		Name:           FeatureSystemExportBackup,
		Description:    "Take scheduled export snapshots",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSystemNameRefresh] = &Feature{
		Name:           FeatureSystemNameRefresh,
		Description:    "Refresh stored member names from the platform",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSystemStaleCleanup] = &Feature{
		Name:           FeatureSystemStaleCleanup,
		Description:    "Purge records of members who left the guild",
		Enabled:        false, // destructive, opt-in per deployment
		RolloutPercent: 0,
	}

	ff.features[FeatureExperimentalGlobalLeaderboard] = &Feature{
		Name:           FeatureExperimentalGlobalLeaderboard,
		Description:    "Cross-guild leaderboard",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_LEVELING_ANNOUNCEMENTS=false
// Example: FEATURE_LEADERBOARD_VIEW_CACHE=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		val := os.Getenv(envKey)
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "leveling.bonus_xp" -> "FEATURE_LEVELING_BONUS_XP"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Member overrides take precedence, then guild overrides
	if ctx != nil && ctx.MemberID != 0 {
		if overrides, ok := ff.memberOverrides[ctx.MemberID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}
	if ctx != nil && ctx.GuildID != 0 {
		if overrides, ok := ff.guildOverrides[ctx.GuildID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.MemberID != 0 {
		return ff.isInRollout(ctx.MemberID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a member is in the rollout percentage.
// Uses consistent hashing so members stay in their bucket.
func (ff *FeatureFlags) isInRollout(memberID int64, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(strconv.FormatInt(memberID, 10)))
	hash := h.Sum32()

	bucket := int(hash % 100)
	return bucket < percent
}

// SetMemberOverride sets a feature override for a specific member.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetMemberOverride(memberID int64, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.memberOverrides[memberID]; !ok {
		ff.memberOverrides[memberID] = make(map[string]bool)
	}
	ff.memberOverrides[memberID][featureName] = enabled
}

// SetGuildOverride sets a feature override for every member of a guild.
func (ff *FeatureFlags) SetGuildOverride(guildID int64, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.guildOverrides[guildID]; !ok {
		ff.guildOverrides[guildID] = make(map[string]bool)
	}
	ff.guildOverrides[guildID][featureName] = enabled
}

// ClearMemberOverrides removes all overrides for a member.
func (ff *FeatureFlags) ClearMemberOverrides(memberID int64) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.memberOverrides, memberID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
