package dedup

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Nomadcxx/animerge/internal/anime"
	"github.com/Nomadcxx/animerge/internal/naming"
)

// ErrEmptyGroup is returned when consolidation is asked to merge nothing.
var ErrEmptyGroup = errors.New("dedup: empty group")

// SeasonIdentities counts the distinct season identities (number plus
// continuation label) among records. Already-consolidated records count every
// season they absorbed.
func SeasonIdentities(records []anime.Record) int {
	seen := make(map[string]bool)
	for i := range records {
		for _, e := range seasonEntries(&records[i]) {
			seen[identityKey(e.Season, e.Label)] = true
		}
	}
	return len(seen)
}

// ConsolidateSeasons collapses records for different seasons of one series
// into the primary record. The result carries one SeasonEntry per absorbed
// record, unnumbered seasons first, then by season number. Consolidating an
// already consolidated record again yields the same seasons in the same
// order.
func ConsolidateSeasons(records []anime.Record) (anime.Record, error) {
	idx := SelectPrimary(records)
	if idx < 0 {
		return anime.Record{}, ErrEmptyGroup
	}

	out := records[idx].Clone()

	var entries []anime.SeasonEntry
	seen := make(map[string]bool)
	for i := range records {
		for _, e := range seasonEntries(&records[i]) {
			k := entryKey(e)
			if seen[k] {
				continue
			}
			seen[k] = true
			entries = append(entries, e)
		}
	}
	sortSeasonEntries(entries)

	seriesKey := SeriesKey(out.Title)
	out.Consolidated = true
	out.SeriesKey = &seriesKey
	out.Seasons = entries
	return out, nil
}

// seasonEntries returns the entries a record contributes: its existing list
// when already consolidated, otherwise a single entry describing itself.
func seasonEntries(r *anime.Record) []anime.SeasonEntry {
	if r.Consolidated && len(r.Seasons) > 0 {
		return anime.Record{Seasons: r.Seasons}.Clone().Seasons
	}
	return []anime.SeasonEntry{EntryFor(r)}
}

// EntryFor builds the season entry that describes a single record.
func EntryFor(r *anime.Record) anime.SeasonEntry {
	info := naming.ExtractSeason(r.Title)
	e := anime.SeasonEntry{
		SourceID: r.ID,
		Title:    r.Title,
		Label:    info.Label,
	}
	if r.Year != nil {
		v := *r.Year
		e.Year = &v
	}
	if r.Episodes != nil {
		v := *r.Episodes
		e.Episodes = &v
	}
	if info.Season != nil {
		v := *info.Season
		e.Season = &v
	}
	return e
}

func entryKey(e anime.SeasonEntry) string {
	if e.SourceID != 0 {
		return fmt.Sprintf("id:%d", e.SourceID)
	}
	return fmt.Sprintf("t:%s|%s|%s", e.Title, optIntString(e.Year), identityKey(e.Season, e.Label))
}

func identityKey(season *int, label string) string {
	return optIntString(season) + "|" + label
}

func optIntString(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}

// sortSeasonEntries orders unnumbered entries first (by year, then source
// id), then numbered entries ascending. The order is total so repeated
// consolidation is stable.
func sortSeasonEntries(entries []anime.SeasonEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if (a.Season == nil) != (b.Season == nil) {
			return a.Season == nil
		}
		if a.Season != nil && *a.Season != *b.Season {
			return *a.Season < *b.Season
		}
		if c := compareOptInt(a.Year, b.Year); c != 0 {
			return c < 0
		}
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.Label < b.Label
	})
}
