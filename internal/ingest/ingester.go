package ingest

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/Nomadcxx/animerge/internal/database"
	"github.com/Nomadcxx/animerge/internal/dedup"
	"github.com/Nomadcxx/animerge/internal/logging"
)

// Outcome is one preprocessed candidate and the id it ended up with.
type Outcome struct {
	dedup.Candidate
	// ID is the inserted record's id, or the existing one for records
	// already present.
	ID int64 `json:"id"`
}

// Result summarizes an ingested batch.
type Result struct {
	Received       int          `json:"received"`
	Inserted       int          `json:"inserted"`
	AlreadyPresent int          `json:"already_present"`
	Outcomes       []Outcome    `json:"outcomes"`
	Diagnostics    []Diagnostic `json:"diagnostics,omitempty"`
}

// Ingester validates, deduplicates and stores incoming batches.
type Ingester struct {
	db     *database.AnimeDB
	pre    *dedup.Preprocessor
	logger *logging.Logger

	// mu spans the store cross-check and the insert, so two batches carrying
	// the same title cannot both see it as new.
	mu sync.Mutex
}

// NewIngester creates an ingester that checks batches against db.
func NewIngester(db *database.AnimeDB, grouper *dedup.Grouper, logger *logging.Logger) *Ingester {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Ingester{
		db:     db,
		pre:    dedup.NewPreprocessor(grouper, db),
		logger: logger,
	}
}

// Ingest stores the records of raws that are not in the store yet. Records
// without a title are skipped with a diagnostic. New records are inserted in
// one transaction; store errors abort the whole batch.
func (i *Ingester) Ingest(ctx context.Context, raws []RawRecord) (*Result, error) {
	records, sources, diags := Validate(raws)
	for _, d := range diags {
		if d.Skipped {
			i.logger.Warn("ingest", "Record skipped", logging.F("index", d.Index), logging.F("reason", d.Message))
		} else {
			i.logger.Debug("ingest", "Field dropped", logging.F("index", d.Index), logging.F("field", d.Field), logging.F("reason", d.Message))
		}
	}

	result := &Result{Received: len(raws), Diagnostics: diags, Outcomes: []Outcome{}}
	if len(records) == 0 {
		return result, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	candidates, err := i.pre.Process(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("preprocess batch: %w", err)
	}

	outcomes := make([]Outcome, len(candidates))
	err = i.db.WithTx(ctx, func(tx *database.Tx) error {
		for n, c := range candidates {
			c.Sources = remapSources(c.Sources, sources)
			outcomes[n] = Outcome{Candidate: c}
			if c.Disposition == dedup.DispositionAlreadyPresent {
				outcomes[n].ID = c.ExistingID
				continue
			}
			rec := c.Record
			id, err := tx.InsertAnime(ctx, &rec)
			if err != nil {
				return err
			}
			outcomes[n].ID = id
			outcomes[n].Record.ID = id
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store batch: %w", err)
	}

	for _, o := range outcomes {
		if o.Disposition == dedup.DispositionAlreadyPresent {
			result.AlreadyPresent++
		} else {
			result.Inserted++
		}
	}
	result.Outcomes = outcomes

	i.logger.Info("ingest", "Batch ingested",
		logging.F("received", result.Received),
		logging.F("inserted", result.Inserted),
		logging.F("already_present", result.AlreadyPresent),
		logging.F("skipped", skippedCount(diags)))
	return result, nil
}

// Preview tags raws without writing anything.
func (i *Ingester) Preview(ctx context.Context, raws []RawRecord) ([]dedup.Candidate, []Diagnostic, error) {
	records, sources, diags := Validate(raws)
	if len(records) == 0 {
		return nil, diags, nil
	}
	candidates, err := i.pre.Process(ctx, records)
	if err != nil {
		return nil, diags, err
	}
	for n := range candidates {
		candidates[n].Sources = remapSources(candidates[n].Sources, sources)
	}
	return candidates, diags, nil
}

// IngestFile decodes a JSON batch from path and ingests it.
func (i *Ingester) IngestFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raws, err := DecodeBatch(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return i.Ingest(ctx, raws)
}

// remapSources turns positions among validated records into positions in
// the raw batch.
func remapSources(positions, sources []int) []int {
	out := make([]int, len(positions))
	for n, p := range positions {
		out[n] = sources[p]
	}
	return out
}

func skippedCount(diags []Diagnostic) int {
	n := 0
	for _, d := range diags {
		if d.Skipped {
			n++
		}
	}
	return n
}

var _ dedup.Catalog = (*database.AnimeDB)(nil)

