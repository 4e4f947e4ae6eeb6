// Package phases implements the optional <store>/phases/<name> travel-time
// surfaces: dense, float32 TileDB arrays indexed by the same axis geometry
// as a store's own grid, giving fast "rough travel time for this phase at
// this grid point" lookups without touching the full impulse-response
// traces (spec.md §6, SPEC_FULL.md §6).
package phases

import (
	"errors"
	"fmt"
	"path/filepath"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/sixy6e/go-gf/store"
)

var ErrAddFilters = errors.New("gf/phases: error adding filter to filter list")

// ArrayOpen opens a TileDB array at uri in the given mode.
func ArrayOpen(ctx *tiledb.Context, uri string, mode tiledb.QueryType) (*tiledb.Array, error) {
	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return nil, err
	}
	if err := array.Open(mode); err != nil {
		array.Free()
		return nil, err
	}
	return array, nil
}

// AddFilters sequentially appends compression filters to a filter list.
func AddFilters(filterList *tiledb.FilterList, filters ...*tiledb.Filter) error {
	for _, f := range filters {
		if err := filterList.AddFilter(f); err != nil {
			return errors.Join(ErrAddFilters, err)
		}
	}
	return nil
}

// ZstdFilter builds a Zstandard compression filter at the given level,
// the default compressor for phase surfaces (small, smooth float32 grids
// compress well with a general-purpose codec).
func ZstdFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_ZSTD)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// arrayURI is the on-disk location of a named phase surface within a
// store directory.
func arrayURI(storeDir, name string) string {
	return filepath.Join(storeDir, "phases", name)
}

// CreateSchema builds and writes a dense TileDB array schema for a phase
// surface spanning the same axes as a store's grid, one float32
// "time" attribute per grid cell, compressed with zstd.
func CreateSchema(ctx *tiledb.Context, storeDir, name string, axes []store.Axis) error {
	domain, err := tiledb.NewDomain(ctx)
	if err != nil {
		return fmt.Errorf("gf/phases: new domain: %w", err)
	}
	defer domain.Free()

	for _, a := range axes {
		extent := int32(a.Count)
		dim, err := tiledb.NewDimension(ctx, a.Name, tiledb.TILEDB_INT32, []int32{0, extent - 1}, extent)
		if err != nil {
			return fmt.Errorf("gf/phases: new dimension %q: %w", a.Name, err)
		}
		if err := domain.AddDimensions(dim); err != nil {
			return fmt.Errorf("gf/phases: adding dimension %q: %w", a.Name, err)
		}
	}

	schema, err := tiledb.NewArraySchema(ctx, tiledb.TILEDB_DENSE)
	if err != nil {
		return fmt.Errorf("gf/phases: new array schema: %w", err)
	}
	defer schema.Free()

	if err := schema.SetDomain(domain); err != nil {
		return fmt.Errorf("gf/phases: set domain: %w", err)
	}
	if err := schema.SetCellOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return err
	}
	if err := schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return err
	}

	attr, err := tiledb.NewAttribute(ctx, "time", tiledb.TILEDB_FLOAT32)
	if err != nil {
		return fmt.Errorf("gf/phases: new attribute: %w", err)
	}
	defer attr.Free()

	filterList, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return fmt.Errorf("gf/phases: new filter list: %w", err)
	}
	defer filterList.Free()

	zstd, err := ZstdFilter(ctx, 9)
	if err != nil {
		return fmt.Errorf("gf/phases: zstd filter: %w", err)
	}
	defer zstd.Free()

	if err := AddFilters(filterList, zstd); err != nil {
		return err
	}
	if err := attr.SetFilterList(filterList); err != nil {
		return fmt.Errorf("gf/phases: attaching filter list: %w", err)
	}
	if err := schema.AddAttributes(attr); err != nil {
		return fmt.Errorf("gf/phases: adding attribute: %w", err)
	}

	uri := arrayURI(storeDir, name)
	if err := tiledb.CreateArray(ctx, uri, schema); err != nil {
		return fmt.Errorf("gf/phases: creating array %q: %w", uri, err)
	}
	return nil
}

// Write fills the named phase surface of a store with one float32 travel
// time per grid index, in the store's native row-major axis order
// (spec.md §4.1's "last axis varies fastest" layout).
func Write(ctx *tiledb.Context, storeDir, name string, times []float32) error {
	uri := arrayURI(storeDir, name)
	array, err := ArrayOpen(ctx, uri, tiledb.TILEDB_WRITE)
	if err != nil {
		return fmt.Errorf("gf/phases: opening %q for write: %w", uri, err)
	}
	defer array.Free()
	defer array.Close()

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return fmt.Errorf("gf/phases: new query: %w", err)
	}
	defer query.Free()

	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return err
	}
	if _, err := query.SetDataBuffer("time", times); err != nil {
		return fmt.Errorf("gf/phases: setting data buffer: %w", err)
	}
	if err := query.Submit(); err != nil {
		return fmt.Errorf("gf/phases: submitting write query: %w", err)
	}
	return query.Finalize()
}

// Reader is an open handle onto one phase surface, read-only.
type Reader struct {
	ctx   *tiledb.Context
	array *tiledb.Array
}

// Open opens the named phase surface of a store directory for reading.
// No such surface is not an error condition this package reports
// specially: callers treat a missing phases/ subdirectory as "no rough
// travel-time hint available" and fall back to computing from the full
// store (SPEC_FULL.md §6).
func Open(ctx *tiledb.Context, storeDir, name string) (*Reader, error) {
	uri := arrayURI(storeDir, name)
	array, err := ArrayOpen(ctx, uri, tiledb.TILEDB_READ)
	if err != nil {
		return nil, fmt.Errorf("gf/phases: opening %q for read: %w", uri, err)
	}
	return &Reader{ctx: ctx, array: array}, nil
}

// Close releases the reader's array handle.
func (r *Reader) Close() error {
	r.array.Close()
	r.array.Free()
	return nil
}

// ReadAll reads the entire phase surface into a flat, row-major []float32
// matching the axis extents the surface was created with.
func (r *Reader) ReadAll(axes []store.Axis) ([]float32, error) {
	n := 1
	subarrayBounds := make([]int32, 0, 2*len(axes))
	for _, a := range axes {
		n *= a.Count
		subarrayBounds = append(subarrayBounds, 0, int32(a.Count-1))
	}

	query, err := tiledb.NewQuery(r.ctx, r.array)
	if err != nil {
		return nil, fmt.Errorf("gf/phases: new query: %w", err)
	}
	defer query.Free()

	subarray, err := r.array.NewSubarray()
	if err != nil {
		return nil, fmt.Errorf("gf/phases: new subarray: %w", err)
	}
	defer subarray.Free()
	if err := subarray.SetSubArray(subarrayBounds); err != nil {
		return nil, fmt.Errorf("gf/phases: setting subarray bounds: %w", err)
	}
	if err := query.SetSubarray(subarray); err != nil {
		return nil, fmt.Errorf("gf/phases: attaching subarray: %w", err)
	}
	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, err
	}

	out := make([]float32, n)
	if _, err := query.SetDataBuffer("time", out); err != nil {
		return nil, fmt.Errorf("gf/phases: setting data buffer: %w", err)
	}
	if err := query.Submit(); err != nil {
		return nil, fmt.Errorf("gf/phases: submitting read query: %w", err)
	}
	return out, nil
}
