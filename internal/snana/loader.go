// Package snana loads SNANA simulation output into light curves.
//
// SNANA writes each simulated chunk as a pair of FITS binary tables: a HEAD
// file with one row per object and a PHOT file with the concatenated
// photometry of all objects. Each HEAD row points into the PHOT table through
// the 1-based inclusive PTROBS_MIN and PTROBS_MAX columns.
package snana

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/basekick-labs/lcparquet/internal/fits"
	"github.com/basekick-labs/lcparquet/internal/storage"
	"github.com/basekick-labs/lcparquet/pkg/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoInputFiles indicates the input location holds no HEAD files.
	ErrNoInputFiles = errors.New("no HEAD.FITS files found")

	// ErrFilePairMismatch indicates HEAD and PHOT files cannot be paired one to one.
	ErrFilePairMismatch = errors.New("HEAD and PHOT files do not pair up")

	// ErrBadPointer indicates a PTROBS pointer outside the PHOT table.
	ErrBadPointer = errors.New("photometry pointer out of range")
)

const (
	headMarker = "HEAD.FITS"
	photMarker = "PHOT.FITS"

	PointerMin = "PTROBS_MIN"
	PointerMax = "PTROBS_MAX"
)

// FilePair is a matched HEAD/PHOT file pair, as backend paths
type FilePair struct {
	Head string
	Phot string
}

// Loader reads SNANA file pairs from a storage backend
type Loader struct {
	backend storage.Backend
	workers int
	logger  zerolog.Logger
}

// NewLoader creates a loader decoding up to workers pairs concurrently
func NewLoader(backend storage.Backend, workers int, logger zerolog.Logger) *Loader {
	if workers < 1 {
		workers = 1
	}
	return &Loader{
		backend: backend,
		workers: workers,
		logger:  logger.With().Str("component", "snana-loader").Logger(),
	}
}

// Discover finds the HEAD and PHOT files directly under prefix and pairs them
// positionally after sorting each list by name.
func (l *Loader) Discover(ctx context.Context, prefix string) ([]FilePair, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	objects, err := l.backend.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list input files: %w", err)
	}

	var heads, phots []string
	for _, obj := range objects {
		name := strings.TrimPrefix(obj, prefix)
		if strings.Contains(name, "/") {
			continue
		}
		if _, ok := stem(name, headMarker); ok {
			heads = append(heads, obj)
		} else if _, ok := stem(name, photMarker); ok {
			phots = append(phots, obj)
		}
	}
	sort.Strings(heads)
	sort.Strings(phots)

	if len(heads) == 0 {
		return nil, fmt.Errorf("%w under %q", ErrNoInputFiles, prefix)
	}
	if len(heads) != len(phots) {
		return nil, fmt.Errorf("%w: %d HEAD files, %d PHOT files", ErrFilePairMismatch, len(heads), len(phots))
	}

	pairs := make([]FilePair, len(heads))
	for i := range heads {
		hs, _ := stem(path.Base(heads[i]), headMarker)
		ps, _ := stem(path.Base(phots[i]), photMarker)
		if hs != ps {
			return nil, fmt.Errorf("%w: %s and %s", ErrFilePairMismatch, heads[i], phots[i])
		}
		pairs[i] = FilePair{Head: heads[i], Phot: phots[i]}
	}

	l.logger.Debug().Int("pairs", len(pairs)).Str("prefix", prefix).Msg("Discovered input files")
	return pairs, nil
}

// stem returns the part of name before marker when name ends with marker or
// marker plus ".gz"
func stem(name, marker string) (string, bool) {
	for _, suffix := range []string{marker, marker + ".gz"} {
		if s, ok := strings.CutSuffix(name, suffix); ok {
			return s, true
		}
	}
	return "", false
}

// Load decodes all pairs and concatenates their light curves in pair order
func (l *Loader) Load(ctx context.Context, pairs []FilePair) ([]*models.LightCurve, error) {
	start := time.Now()
	results := make([][]*models.LightCurve, len(pairs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, pair := range pairs {
		g.Go(func() error {
			lcs, err := l.LoadPair(ctx, pair)
			if err != nil {
				return err
			}
			results[i] = lcs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	records := make([]*models.LightCurve, 0, total)
	for _, r := range results {
		records = append(records, r...)
	}

	l.logger.Info().
		Int("pairs", len(pairs)).
		Int("objects", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Loaded light curves")

	return records, nil
}

// LoadPair decodes one HEAD/PHOT pair into one light curve per HEAD row
func (l *Loader) LoadPair(ctx context.Context, pair FilePair) ([]*models.LightCurve, error) {
	head, err := l.readTable(ctx, pair.Head)
	if err != nil {
		return nil, err
	}
	phot, err := l.readTable(ctx, pair.Phot)
	if err != nil {
		return nil, err
	}

	lcs, err := Split(head, phot)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pair.Head, err)
	}

	l.logger.Debug().
		Str("head", pair.Head).
		Int("objects", len(lcs)).
		Int("observations", phot.Rows).
		Msg("Decoded file pair")

	return lcs, nil
}

func (l *Loader) readTable(ctx context.Context, p string) (*fits.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := l.backend.Read(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	table, err := fits.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", p, err)
	}
	return table, nil
}

// Split builds one light curve per HEAD row. Metadata is the HEAD row and the
// observations are PHOT rows [PTROBS_MIN-1, PTROBS_MAX).
func Split(head, phot *fits.Table) ([]*models.LightCurve, error) {
	ptrMin, err := pointerColumn(head, PointerMin)
	if err != nil {
		return nil, err
	}
	ptrMax, err := pointerColumn(head, PointerMax)
	if err != nil {
		return nil, err
	}

	metaNames := head.Names()
	obsNames := phot.Names()

	lcs := make([]*models.LightCurve, head.Rows)
	for r := 0; r < head.Rows; r++ {
		lo, hi := ptrMin[r]-1, ptrMax[r]
		if lo < 0 || hi < lo || hi > int64(phot.Rows) {
			return nil, fmt.Errorf("%w: row %d has %s=%d %s=%d, PHOT has %d rows",
				ErrBadPointer, r, PointerMin, ptrMin[r], PointerMax, ptrMax[r], phot.Rows)
		}

		lc := &models.LightCurve{
			Meta:      make(map[string]interface{}, len(metaNames)),
			MetaNames: metaNames,
			Obs:       make(map[string]interface{}, len(obsNames)),
			ObsNames:  obsNames,
		}
		for _, c := range head.Columns {
			lc.Meta[c.Name] = scalarAt(c.Data, r)
		}
		for _, c := range phot.Columns {
			lc.Obs[c.Name] = slice(c.Data, int(lo), int(hi))
		}
		lcs[r] = lc
	}
	return lcs, nil
}

func pointerColumn(t *fits.Table, name string) ([]int64, error) {
	col, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: HEAD table has no %s column", ErrBadPointer, name)
	}
	ptr, ok := col.([]int64)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, want integer", ErrBadPointer, name, models.ColumnType(col))
	}
	return ptr, nil
}

func scalarAt(col interface{}, i int) interface{} {
	switch c := col.(type) {
	case []int64:
		return c[i]
	case []float64:
		return c[i]
	case []string:
		return c[i]
	case []bool:
		return c[i]
	}
	return nil
}

// slice returns col[lo:hi] capped so appends never write into the PHOT column
func slice(col interface{}, lo, hi int) interface{} {
	switch c := col.(type) {
	case []int64:
		return c[lo:hi:hi]
	case []float64:
		return c[lo:hi:hi]
	case []string:
		return c[lo:hi:hi]
	case []bool:
		return c[lo:hi:hi]
	}
	return nil
}
