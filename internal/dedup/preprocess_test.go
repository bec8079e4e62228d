package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/Nomadcxx/animerge/internal/anime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	records []anime.Record
	err     error
}

func (f *fakeCatalog) FindByMalID(_ context.Context, id int) (*anime.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.records {
		if r := &f.records[i]; r.MalID != nil && *r.MalID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) FindByAniListID(_ context.Context, id int) (*anime.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.records {
		if r := &f.records[i]; r.AniListID != nil && *r.AniListID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) FindByBaseTitle(_ context.Context, base string) ([]anime.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []anime.Record
	for _, r := range f.records {
		if SeriesKey(r.Title) == KeyPrefixTitle+base {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestPreprocessor_CollapsesBatch(t *testing.T) {
	batch := []anime.Record{
		withMal(anime.Record{Title: "Naruto", Year: anime.IntPtr(2002)}, 20),
		{Title: "Cowboy Bebop", Year: anime.IntPtr(1998)},
		withMal(anime.Record{Title: "Naruto (TV)", Year: anime.IntPtr(2002)}, 20),
		{Title: "Naruto Shippuden", Year: anime.IntPtr(2007)},
	}

	out, err := NewPreprocessor(nil, nil).Process(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "Naruto", out[0].Record.Title)
	assert.True(t, out[0].Record.Consolidated)
	assert.GreaterOrEqual(t, len(out[0].Record.Seasons), 2)
	assert.ElementsMatch(t, []int{0, 2, 3}, out[0].Sources)
	assert.Equal(t, DispositionInsert, out[0].Disposition)

	assert.Equal(t, "Cowboy Bebop", out[1].Record.Title)
	assert.Equal(t, []int{1}, out[1].Sources)
}

func TestPreprocessor_PlainDuplicatesFillFields(t *testing.T) {
	batch := []anime.Record{
		{Title: "Boku no Hero Academia", Year: anime.IntPtr(2016), MalID: anime.IntPtr(31964)},
		{
			Title:        "My Hero Academia",
			TitleEnglish: anime.StringPtr("My Hero Academia"),
			Year:         anime.IntPtr(2016),
			AniListID:    anime.IntPtr(21459),
			Description:  anime.StringPtr("Heroes."),
		},
	}

	out, err := NewPreprocessor(nil, nil).Process(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out, 1)

	r := out[0].Record
	assert.Equal(t, "My Hero Academia", r.Title)
	assert.False(t, r.Consolidated)
	require.NotNil(t, r.MalID)
	assert.Equal(t, 31964, *r.MalID)
	assert.Contains(t, r.AltTitles, "Boku no Hero Academia")
}

func TestPreprocessor_AlreadyPresent(t *testing.T) {
	catalog := &fakeCatalog{records: []anime.Record{
		{ID: 10, Title: "Naruto", MalID: anime.IntPtr(20)},
		{ID: 11, Title: "Frieren", AniListID: anime.IntPtr(154587)},
		{ID: 12, Title: "Cowboy Bebop"},
		{ID: 13, Title: "Attack on Titan", MalID: anime.IntPtr(16498)},
	}}

	batch := []anime.Record{
		{Title: "NARUTO", MalID: anime.IntPtr(20)},
		{Title: "Sousou no Frieren", AniListID: anime.IntPtr(154587)},
		{Title: "Cowboy Bebop (TV)"},
		{Title: "Attack on Titan Season 2", MalID: anime.IntPtr(25777)},
		{Title: "Trigun"},
	}

	out, err := NewPreprocessor(nil, catalog).Process(context.Background(), batch)
	require.NoError(t, err)

	got := make(map[string]Candidate)
	for _, c := range out {
		got[c.Record.Title] = c
	}

	assert.Equal(t, DispositionAlreadyPresent, got["NARUTO"].Disposition)
	assert.Equal(t, int64(10), got["NARUTO"].ExistingID)
	assert.Equal(t, int64(11), got["Sousou no Frieren"].ExistingID)
	assert.Equal(t, int64(12), got["Cowboy Bebop (TV)"].ExistingID)

	// Different season of a known series is new.
	assert.Equal(t, DispositionInsert, got["Attack on Titan Season 2"].Disposition)
	assert.Equal(t, DispositionInsert, got["Trigun"].Disposition)
	assert.Zero(t, got["Trigun"].ExistingID)
}

func TestPreprocessor_TitleMatchRejectsConflictingIDs(t *testing.T) {
	catalog := &fakeCatalog{records: []anime.Record{
		{ID: 1, Title: "Hunter x Hunter", MalID: anime.IntPtr(136)},
	}}
	batch := []anime.Record{{Title: "Hunter x Hunter (2011)", MalID: anime.IntPtr(11061)}}

	out, err := NewPreprocessor(nil, catalog).Process(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, DispositionInsert, out[0].Disposition)
}

func TestPreprocessor_ConsolidatedSeasonCounts(t *testing.T) {
	catalog := &fakeCatalog{records: []anime.Record{{
		ID:           5,
		Title:        "Vinland Saga",
		Consolidated: true,
		Seasons: []anime.SeasonEntry{
			{SourceID: 5, Title: "Vinland Saga"},
			{SourceID: 6, Title: "Vinland Saga Season 2", Season: anime.IntPtr(2)},
		},
	}}}
	batch := []anime.Record{{Title: "Vinland Saga Season 2"}}

	out, err := NewPreprocessor(nil, catalog).Process(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, int64(5), out[0].ExistingID)
}

func TestPreprocessor_CatalogErrorPropagates(t *testing.T) {
	storeDown := errors.New("store unreachable")
	catalog := &fakeCatalog{err: storeDown}

	out, err := NewPreprocessor(nil, catalog).Process(context.Background(), []anime.Record{{Title: "Naruto"}})
	assert.ErrorIs(t, err, storeDown)
	assert.Nil(t, out)
}
