package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/guildxp/guildxp/internal/application/query"
	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"service": "guildxp",
		"status":  "ok",
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"uptime_s": int(s.Uptime().Seconds()),
	})
}

// handleReady probes every registered dependency checker. Any failure
// makes the whole endpoint return 503 so the orchestrator holds traffic.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.deps.Checkers))
	ready := true
	for name, check := range s.deps.Checkers {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
		} else {
			checks[name] = "ok"
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, map[string]interface{}{
		"ready":  ready,
		"checks": checks,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// API ENDPOINTS
// Read-only views over the leaderboard data, mirroring the bot commands.
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	guildID, ok := pathID(w, r, "guild")
	if !ok {
		return
	}

	limit := getQueryParamInt(r, "limit", 25)
	if limit > 100 {
		limit = 100
	}

	result, err := s.deps.Leaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		GuildID: shared.GuildID(guildID),
		SortKey: member.SortKey(r.URL.Query().Get("sort")),
		Limit:   limit,
	})
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	guildID, memberID, ok := pathIDs(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Rank.Handle(r.Context(), query.GetRankQuery{
		GuildID:  shared.GuildID(guildID),
		MemberID: shared.MemberID(memberID),
	})
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleMember(w http.ResponseWriter, r *http.Request) {
	guildID, memberID, ok := pathIDs(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Members.Handle(r.Context(), query.GetMemberQuery{
		GuildID:  shared.GuildID(guildID),
		MemberID: shared.MemberID(memberID),
	})
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	guildID, memberID, ok := pathIDs(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Neighbors.Handle(r.Context(), query.GetNeighborsQuery{
		GuildID:   shared.GuildID(guildID),
		MemberID:  shared.MemberID(memberID),
		RangeSize: getQueryParamInt(r, "range", 0),
	})
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

// writeQueryError maps application errors to HTTP statuses.
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, member.ErrRecordNotFound):
		writeJSONError(w, http.StatusNotFound, "record_not_found", "No record for that member")
	case errors.Is(err, member.ErrInvalidGuildID),
		errors.Is(err, member.ErrInvalidMemberID),
		errors.Is(err, member.ErrInvalidLimit),
		errors.Is(err, member.ErrInvalidSortKey):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Query failed")
	}
}

// pathID parses one positive int64 path segment.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Path segment "+name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// pathIDs parses the guild and member path segments.
func pathIDs(w http.ResponseWriter, r *http.Request) (guildID, memberID int64, ok bool) {
	guildID, ok = pathID(w, r, "guild")
	if !ok {
		return 0, 0, false
	}
	memberID, ok = pathID(w, r, "member")
	if !ok {
		return 0, 0, false
	}
	return guildID, memberID, true
}
