// Package anime holds the record types shared by the matching core, the
// store and the merge engine.
package anime

import (
	"strings"
	"time"
)

// Record is a single anime entry as held by the store. Optional metadata is
// pointer or slice typed so that "absent" is distinguishable from zero.
type Record struct {
	ID int64 `json:"id"`

	// External catalog identities
	MalID     *int `json:"mal_id,omitempty"`
	AniListID *int `json:"anilist_id,omitempty"`

	Title        string   `json:"title"`
	TitleEnglish *string  `json:"title_english,omitempty"`
	AltTitles    []string `json:"alt_titles,omitempty"`

	Year          *int     `json:"year,omitempty"`
	Episodes      *int     `json:"episodes,omitempty"`
	TotalEpisodes *int     `json:"total_episodes,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	Studios       []string `json:"studios,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	PosterURL     *string  `json:"poster_url,omitempty"`
	Description   *string  `json:"description,omitempty"`

	// Consolidation
	Consolidated bool          `json:"consolidated"`
	SeriesKey    *string       `json:"series_key,omitempty"`
	Seasons      []SeasonEntry `json:"seasons,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SeasonEntry keeps the essential fields of a record absorbed into a
// consolidated series.
type SeasonEntry struct {
	SourceID int64  `json:"source_id,omitempty"`
	Title    string `json:"title"`
	Year     *int   `json:"year,omitempty"`
	Episodes *int   `json:"episodes,omitempty"`
	Season   *int   `json:"season,omitempty"`
	Label    string `json:"label,omitempty"`
}

// Titles returns every non-empty title variant of the record, primary title first.
func (r *Record) Titles() []string {
	titles := make([]string, 0, 2+len(r.AltTitles))
	if strings.TrimSpace(r.Title) != "" {
		titles = append(titles, r.Title)
	}
	if r.TitleEnglish != nil && strings.TrimSpace(*r.TitleEnglish) != "" {
		titles = append(titles, *r.TitleEnglish)
	}
	for _, alt := range r.AltTitles {
		if strings.TrimSpace(alt) != "" {
			titles = append(titles, alt)
		}
	}
	return titles
}

// HasEnglishTitle reports whether an explicit English title is present.
func (r *Record) HasEnglishTitle() bool {
	return r.TitleEnglish != nil && strings.TrimSpace(*r.TitleEnglish) != ""
}

// Clone returns a deep copy so snapshots never alias live records.
func (r Record) Clone() Record {
	c := r
	c.MalID = cloneInt(r.MalID)
	c.AniListID = cloneInt(r.AniListID)
	c.TitleEnglish = cloneString(r.TitleEnglish)
	c.AltTitles = cloneStrings(r.AltTitles)
	c.Year = cloneInt(r.Year)
	c.Episodes = cloneInt(r.Episodes)
	c.TotalEpisodes = cloneInt(r.TotalEpisodes)
	c.Genres = cloneStrings(r.Genres)
	c.Studios = cloneStrings(r.Studios)
	if r.Rating != nil {
		v := *r.Rating
		c.Rating = &v
	}
	c.PosterURL = cloneString(r.PosterURL)
	c.Description = cloneString(r.Description)
	c.SeriesKey = cloneString(r.SeriesKey)
	if r.Seasons != nil {
		c.Seasons = make([]SeasonEntry, len(r.Seasons))
		for i, s := range r.Seasons {
			s.Year = cloneInt(s.Year)
			s.Episodes = cloneInt(s.Episodes)
			s.Season = cloneInt(s.Season)
			c.Seasons[i] = s
		}
	}
	return c
}

// IntPtr is a helper for building optional int fields.
func IntPtr(v int) *int { return &v }

// StringPtr is a helper for building optional string fields.
func StringPtr(v string) *string { return &v }

// FloatPtr is a helper for building optional float fields.
func FloatPtr(v float64) *float64 { return &v }

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
