package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Nomadcxx/animerge/internal/anime"
	"github.com/Nomadcxx/animerge/internal/database"
	"github.com/Nomadcxx/animerge/internal/dedup"
	"github.com/Nomadcxx/animerge/internal/ingest"
	"github.com/Nomadcxx/animerge/internal/merge"
	"github.com/Nomadcxx/animerge/internal/quality"
)

// GroupMember is one record of a previewed duplicate group.
type GroupMember struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	TitleEnglish string `json:"title_english,omitempty"`
	Year         *int   `json:"year,omitempty"`
	MalID        *int   `json:"mal_id,omitempty"`
	AniListID    *int   `json:"anilist_id,omitempty"`
	QualityScore int    `json:"quality_score"`
	Primary      bool   `json:"primary"`
}

// GroupPreview is a duplicate group as it would be merged.
type GroupPreview struct {
	Key          string        `json:"key"`
	Consolidated bool          `json:"consolidated"`
	Members      []GroupMember `json:"members"`
}

// GroupList is the response of ListGroups.
type GroupList struct {
	Total  int            `json:"total"`
	Groups []GroupPreview `json:"groups"`
}

// IngestPreview is the response of a preview ingest.
type IngestPreview struct {
	Candidates  []dedup.Candidate   `json:"candidates"`
	Diagnostics []ingest.Diagnostic `json:"diagnostics,omitempty"`
}

// GetHealth implements ServerInterface
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.DB().PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListGroups implements ServerInterface
func (s *Server) ListGroups(w http.ResponseWriter, r *http.Request, params ListGroupsParams) {
	groups, err := s.runner.Groups(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "grouping_failed", err.Error())
		return
	}

	resp := GroupList{Total: len(groups), Groups: []GroupPreview{}}
	if params.Limit != nil && *params.Limit > 0 && len(groups) > *params.Limit {
		groups = groups[:*params.Limit]
	}
	for _, g := range groups {
		resp.Groups = append(resp.Groups, previewGroup(g))
	}
	writeJSON(w, http.StatusOK, resp)
}

// RunDedup implements ServerInterface
func (s *Server) RunDedup(w http.ResponseWriter, r *http.Request, params RunDedupParams) {
	opts := merge.RunOptions{}
	if params.DryRun != nil {
		opts.DryRun = *params.DryRun
	}
	if params.Limit != nil {
		if *params.Limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid_parameter", "limit must not be negative")
			return
		}
		opts.LimitGroups = *params.Limit
	}

	if !s.runMu.TryLock() {
		writeError(w, http.StatusConflict, "run_in_progress", "Another dedup run or restore is in progress")
		return
	}
	defer s.runMu.Unlock()

	result, err := s.runner.Run(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "run_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListBatches implements ServerInterface
func (s *Server) ListBatches(w http.ResponseWriter, r *http.Request, params ListBatchesParams) {
	limit := 50
	if params.Limit != nil {
		limit = *params.Limit
	}
	batches, err := s.db.ListMergeBatches(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	if batches == nil {
		batches = []database.BatchSummary{}
	}
	writeJSON(w, http.StatusOK, batches)
}

// RestoreBatch implements ServerInterface
func (s *Server) RestoreBatch(w http.ResponseWriter, r *http.Request, batchId string) {
	if !s.runMu.TryLock() {
		writeError(w, http.StatusConflict, "run_in_progress", "Another dedup run or restore is in progress")
		return
	}
	defer s.runMu.Unlock()

	result, err := s.runner.Restore(r.Context(), batchId)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "restore_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Ingest implements ServerInterface
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request, params IngestParams) {
	raws, err := ingest.DecodeBatch(http.MaxBytesReader(w, r.Body, MaxIngestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_batch", err.Error())
		return
	}

	if params.Preview != nil && *params.Preview {
		candidates, diags, err := s.ingester.Preview(r.Context(), raws)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "preview_failed", err.Error())
			return
		}
		if candidates == nil {
			candidates = []dedup.Candidate{}
		}
		writeJSON(w, http.StatusOK, IngestPreview{Candidates: candidates, Diagnostics: diags})
		return
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	result, err := s.ingester.Ingest(r.Context(), raws)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ingest_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetStats implements ServerInterface
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func previewGroup(g dedup.Group) GroupPreview {
	primary := dedup.SelectPrimary(g.Members)
	p := GroupPreview{
		Key:          g.Key,
		Consolidated: dedup.SeasonIdentities(g.Members) > 1,
		Members:      make([]GroupMember, len(g.Members)),
	}
	for i := range g.Members {
		p.Members[i] = memberOf(&g.Members[i], i == primary)
	}
	return p
}

func memberOf(r *anime.Record, primary bool) GroupMember {
	m := GroupMember{
		ID:           r.ID,
		Title:        r.Title,
		Year:         r.Year,
		MalID:        r.MalID,
		AniListID:    r.AniListID,
		QualityScore: quality.ScoreRecord(r),
		Primary:      primary,
	}
	if r.TitleEnglish != nil {
		m.TitleEnglish = *r.TitleEnglish
	}
	return m
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}
