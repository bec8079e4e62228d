// Package ingest is the boundary where raw catalog records enter the store.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Nomadcxx/animerge/internal/anime"
)

// ErrInvalidBatch marks a batch that can never be ingested as delivered.
var ErrInvalidBatch = errors.New("invalid batch")

// RawRecord is a record as delivered by an external catalog fetcher. Every
// field except the title is optional.
type RawRecord struct {
	Title         string   `json:"title"`
	TitleEnglish  *string  `json:"title_english,omitempty"`
	AltTitles     []string `json:"alt_titles,omitempty"`
	MalID         *int     `json:"mal_id,omitempty"`
	AniListID     *int     `json:"anilist_id,omitempty"`
	Year          *int     `json:"year,omitempty"`
	Episodes      *int     `json:"episodes,omitempty"`
	TotalEpisodes *int     `json:"total_episodes,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	Studios       []string `json:"studios,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	PosterURL     *string  `json:"poster_url,omitempty"`
	Description   *string  `json:"description,omitempty"`
}

// Diagnostic explains why a raw record, or one of its fields, was dropped.
type Diagnostic struct {
	Index   int    `json:"index"`
	Title   string `json:"title,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	// Skipped is set when the whole record was dropped.
	Skipped bool `json:"skipped"`
}

func (d Diagnostic) String() string {
	if d.Field != "" {
		return fmt.Sprintf("record %d (%s): %s: %s", d.Index, d.Title, d.Field, d.Message)
	}
	return fmt.Sprintf("record %d: %s", d.Index, d.Message)
}

// DecodeBatch reads a JSON array of raw records. A single JSON object is
// accepted as a batch of one.
func DecodeBatch(r io.Reader) ([]RawRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidBatch)
	}

	if strings.HasPrefix(trimmed, "{") {
		var one RawRecord
		if err := json.Unmarshal([]byte(trimmed), &one); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBatch, err)
		}
		return []RawRecord{one}, nil
	}

	var batch []RawRecord
	if err := json.Unmarshal([]byte(trimmed), &batch); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}
	return batch, nil
}

// Validate converts raw records into store records. Records without a title
// are skipped; invalid optional fields are cleared. Every dropped record or
// field yields a diagnostic. The returned sources hold, for each record,
// its index in raws.
func Validate(raws []RawRecord) (records []anime.Record, sources []int, diags []Diagnostic) {
	for i, raw := range raws {
		title := strings.TrimSpace(raw.Title)
		if title == "" {
			diags = append(diags, Diagnostic{Index: i, Message: "missing title", Skipped: true})
			continue
		}

		field := func(name, msg string) {
			diags = append(diags, Diagnostic{Index: i, Title: title, Field: name, Message: msg})
		}

		r := anime.Record{
			Title:         title,
			TitleEnglish:  trimmed(raw.TitleEnglish),
			AltTitles:     cleanStrings(raw.AltTitles),
			MalID:         positive(raw.MalID, "mal_id", field),
			AniListID:     positive(raw.AniListID, "anilist_id", field),
			Year:          year(raw.Year, field),
			Episodes:      nonNegative(raw.Episodes, "episodes", field),
			TotalEpisodes: nonNegative(raw.TotalEpisodes, "total_episodes", field),
			Genres:        cleanStrings(raw.Genres),
			Studios:       cleanStrings(raw.Studios),
			Rating:        rating(raw.Rating, field),
			PosterURL:     trimmed(raw.PosterURL),
			Description:   trimmed(raw.Description),
		}
		records = append(records, r)
		sources = append(sources, i)
	}
	return records, sources, diags
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func cleanStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	return out
}

func positive(v *int, name string, report func(string, string)) *int {
	if v == nil {
		return nil
	}
	if *v <= 0 {
		report(name, fmt.Sprintf("ignored non-positive id %d", *v))
		return nil
	}
	return anime.IntPtr(*v)
}

func nonNegative(v *int, name string, report func(string, string)) *int {
	if v == nil {
		return nil
	}
	if *v < 0 {
		report(name, fmt.Sprintf("ignored negative count %d", *v))
		return nil
	}
	return anime.IntPtr(*v)
}

func year(v *int, report func(string, string)) *int {
	if v == nil {
		return nil
	}
	if *v < 1900 || *v > 2200 {
		report("year", fmt.Sprintf("ignored implausible year %d", *v))
		return nil
	}
	return anime.IntPtr(*v)
}

func rating(v *float64, report func(string, string)) *float64 {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > 10 {
		report("rating", fmt.Sprintf("ignored rating %.2f outside 0-10", *v))
		return nil
	}
	return anime.FloatPtr(*v)
}
