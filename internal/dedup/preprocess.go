package dedup

import (
	"context"
	"fmt"

	"github.com/Nomadcxx/animerge/internal/anime"
	"github.com/Nomadcxx/animerge/internal/naming"
)

// Catalog is the read-only view of the existing store the preprocessor
// cross-checks against. Lookups that find nothing return nil, nil.
type Catalog interface {
	FindByMalID(ctx context.Context, malID int) (*anime.Record, error)
	FindByAniListID(ctx context.Context, anilistID int) (*anime.Record, error)
	FindByBaseTitle(ctx context.Context, baseTitle string) ([]anime.Record, error)
}

// Disposition tells the ingester what to do with a preprocessed candidate.
type Disposition string

const (
	DispositionInsert         Disposition = "insert"
	DispositionAlreadyPresent Disposition = "already_present"
)

// Candidate is one record left after collapsing an incoming batch.
type Candidate struct {
	Record      anime.Record `json:"record"`
	Disposition Disposition  `json:"disposition"`
	ExistingID  int64        `json:"existing_id,omitempty"`
	// Positions in the input batch that collapsed into this candidate.
	Sources []int `json:"sources"`
}

// Preprocessor collapses duplicates inside an incoming batch and checks each
// survivor against the store.
type Preprocessor struct {
	grouper *Grouper
	catalog Catalog
}

// NewPreprocessor creates a preprocessor. A nil catalog tags every candidate
// for insertion.
func NewPreprocessor(grouper *Grouper, catalog Catalog) *Preprocessor {
	if grouper == nil {
		grouper = NewGrouper(DefaultOptions())
	}
	return &Preprocessor{grouper: grouper, catalog: catalog}
}

// Process returns one candidate per distinct title in records, in order of
// first appearance. Catalog errors abort the batch and are returned as is so
// the caller can retry.
func (p *Preprocessor) Process(ctx context.Context, records []anime.Record) ([]Candidate, error) {
	grouped := make(map[int][]int) // first input position -> group positions
	inGroup := make(map[int]bool)
	for _, idx := range p.grouper.GroupIndices(records) {
		first := idx[0]
		for _, i := range idx {
			if i < first {
				first = i
			}
			inGroup[i] = true
		}
		grouped[first] = idx
	}

	var candidates []Candidate
	for i := range records {
		if idx, ok := grouped[i]; ok {
			c, err := collapse(records, idx)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, c)
			continue
		}
		if inGroup[i] {
			continue
		}
		candidates = append(candidates, Candidate{
			Record:      records[i].Clone(),
			Disposition: DispositionInsert,
			Sources:     []int{i},
		})
	}

	if p.catalog == nil {
		return candidates, nil
	}

	for i := range candidates {
		existing, err := p.findExisting(ctx, &candidates[i].Record)
		if err != nil {
			return nil, fmt.Errorf("cross-check %q: %w", candidates[i].Record.Title, err)
		}
		if existing != nil {
			candidates[i].Disposition = DispositionAlreadyPresent
			candidates[i].ExistingID = existing.ID
		}
	}
	return candidates, nil
}

// collapse merges one intra-batch group into a single candidate.
func collapse(records []anime.Record, idx []int) (Candidate, error) {
	members := make([]anime.Record, len(idx))
	for i, j := range idx {
		members[i] = records[j]
	}

	var merged anime.Record
	if SeasonIdentities(members) > 1 {
		var err error
		merged, err = ConsolidateSeasons(members)
		if err != nil {
			return Candidate{}, err
		}
	} else {
		p := SelectPrimary(members)
		merged = members[p].Clone()
		rest := make([]anime.Record, 0, len(members)-1)
		for i := range members {
			if i != p {
				rest = append(rest, members[i])
			}
		}
		FillMissing(&merged, rest)
	}

	sources := append([]int(nil), idx...)
	return Candidate{Record: merged, Disposition: DispositionInsert, Sources: sources}, nil
}

// findExisting looks a candidate up by MyAnimeList id, then AniList id, then
// base title. A title match only counts when the ids do not conflict and it
// is the same season.
func (p *Preprocessor) findExisting(ctx context.Context, r *anime.Record) (*anime.Record, error) {
	if r.MalID != nil {
		found, err := p.catalog.FindByMalID(ctx, *r.MalID)
		if err != nil || found != nil {
			return found, err
		}
	}
	if r.AniListID != nil {
		found, err := p.catalog.FindByAniListID(ctx, *r.AniListID)
		if err != nil || found != nil {
			return found, err
		}
	}

	info := naming.ExtractSeason(r.Title)
	if info.BaseTitle == "" {
		return nil, nil
	}
	matches, err := p.catalog.FindByBaseTitle(ctx, info.BaseTitle)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		m := &matches[i]
		if conflictingIDs(r, m) {
			continue
		}
		if coversSeason(m, info) {
			return m, nil
		}
	}
	return nil, nil
}

// coversSeason reports whether an existing record already represents the
// season described by info, either itself or through its consolidated seasons.
func coversSeason(existing *anime.Record, info naming.SeasonInfo) bool {
	if naming.SameSeason(naming.ExtractSeason(existing.Title), info) {
		return true
	}
	for _, s := range existing.Seasons {
		if naming.SameSeason(naming.SeasonInfo{Season: s.Season, Label: s.Label}, info) {
			return true
		}
	}
	return false
}
