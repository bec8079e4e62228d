package quality

// Metadata Quality Scoring
//
// Determines which record to keep when duplicates are merged. Every signal
// only ever adds points, so populating a field never lowers a score.
// Higher score = richer metadata = record to keep.

import (
	"strings"

	"github.com/Nomadcxx/animerge/internal/anime"
)

const (
	// Description (highest weight; the field users see first)
	ScoreDescriptionPresent   = 20
	ScoreDescriptionPer100    = 2
	MaxDescriptionLengthBonus = 20

	// Poster
	ScorePosterPresent        = 15
	ScorePosterNotPlaceholder = 10

	// External catalog identities
	ScoreMalID        = 15
	ScoreAniListID    = 15
	ScoreBothIDsBonus = 10

	// Titles
	ScoreEnglishTitle = 12
	ScorePerAltTitle  = 2
	MaxAltTitleBonus  = 6

	// Classification
	ScoreGenres  = 8
	ScoreStudios = 8

	// Episode completeness
	ScoreEpisodesPresent  = 5
	ScoreEpisodesComplete = 10

	// Minor facts
	ScoreYear   = 3
	ScoreRating = 3
)

// ScoreRecord calculates the metadata quality score of a record.
//
// Algorithm:
//  1. Description presence plus 2 points per 100 characters (capped at 20)
//  2. Poster presence, plus a bonus when the URL is not a known placeholder
//  3. Each external id, plus a bonus when both are present
//  4. Explicit English title and alternate titles (capped)
//  5. Non-empty genres and studios
//  6. Episode count, plus a bonus when it reaches the known total
//  7. Year and rating
//
// Returns: non-negative score (higher is better)
func ScoreRecord(r *anime.Record) int {
	if r == nil {
		return 0
	}

	score := 0

	if r.Description != nil {
		desc := strings.TrimSpace(*r.Description)
		if desc != "" {
			score += ScoreDescriptionPresent
			bonus := (len([]rune(desc)) / 100) * ScoreDescriptionPer100
			if bonus > MaxDescriptionLengthBonus {
				bonus = MaxDescriptionLengthBonus
			}
			score += bonus
		}
	}

	if r.PosterURL != nil && strings.TrimSpace(*r.PosterURL) != "" {
		score += ScorePosterPresent
		if !IsPlaceholderPoster(*r.PosterURL) {
			score += ScorePosterNotPlaceholder
		}
	}

	if r.MalID != nil {
		score += ScoreMalID
	}
	if r.AniListID != nil {
		score += ScoreAniListID
	}
	if r.MalID != nil && r.AniListID != nil {
		score += ScoreBothIDsBonus
	}

	if r.HasEnglishTitle() {
		score += ScoreEnglishTitle
	}
	alt := 0
	for _, t := range r.AltTitles {
		if strings.TrimSpace(t) != "" {
			alt += ScorePerAltTitle
		}
	}
	if alt > MaxAltTitleBonus {
		alt = MaxAltTitleBonus
	}
	score += alt

	if hasNonEmpty(r.Genres) {
		score += ScoreGenres
	}
	if hasNonEmpty(r.Studios) {
		score += ScoreStudios
	}

	if r.Episodes != nil && *r.Episodes > 0 {
		score += ScoreEpisodesPresent
		if r.TotalEpisodes != nil && *r.TotalEpisodes > 0 && *r.Episodes >= *r.TotalEpisodes {
			score += ScoreEpisodesComplete
		}
	}

	if r.Year != nil && *r.Year > 0 {
		score += ScoreYear
	}
	if r.Rating != nil && *r.Rating > 0 {
		score += ScoreRating
	}

	return score
}

func hasNonEmpty(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
