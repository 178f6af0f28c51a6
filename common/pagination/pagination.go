package pagination

import (
	"context"
)

// Page holds one fetched page of raw records plus the metadata the source
// reported alongside it.
type Page[T any] struct {
	Records []T
	// TotalCount is the source-reported total result count, or -1 when the
	// source does not report one.
	TotalCount int
}

// FetchFunc fetches a single page. pageNumber is 1-based; offset is the
// number of records accumulated before this page. Pages are always fetched
// in increasing order, one at a time.
type FetchFunc[T any] func(ctx context.Context, pageNumber, offset int) (Page[T], error)

// Terminator decides, per fetched page, whether its records are kept and
// whether another fetch should follow. Implementations may carry loop-local
// state (e.g. the previous page's fingerprint set); they are never shared
// across queries.
type Terminator[T any] interface {
	Next(page Page[T], offset int) (keep bool, more bool)
}

// Run drives the fetch loop until the terminator stops it, an empty page
// arrives, or a fetch fails. A fetch error aborts pagination but returns
// everything accumulated so far along with the error: partial results are
// preferred to none.
func Run[T any](ctx context.Context, fetch FetchFunc[T], term Terminator[T]) ([]T, error) {
	var all []T
	offset := 0

	for pageNumber := 1; ; pageNumber++ {
		page, err := fetch(ctx, pageNumber, offset)
		if err != nil {
			return all, err
		}
		if len(page.Records) == 0 {
			return all, nil
		}

		keep, more := term.Next(page, offset)
		if keep {
			all = append(all, page.Records...)
			offset += len(page.Records)
		}
		if !more {
			return all, nil
		}
	}
}

// CountBound continues while the accumulated offset is below the
// source-reported total. When the source reports no total it falls back to
// the short-page rule: a page smaller than PageSize is the last one.
type CountBound[T any] struct {
	PageSize int
}

// NewCountBound returns a count-bounded terminator for a fixed page size.
func NewCountBound[T any](pageSize int) *CountBound[T] {
	return &CountBound[T]{PageSize: pageSize}
}

func (c *CountBound[T]) Next(page Page[T], offset int) (bool, bool) {
	if page.TotalCount >= 0 {
		return true, offset+len(page.Records) < page.TotalCount
	}
	return true, len(page.Records) >= c.PageSize
}

// FingerprintBound stops when a page's identifier set is contained in the
// previous page's set, which means the source has stopped advancing and is
// replaying records. Such a stale page is discarded, not accumulated. When
// FullPage is positive, a page shorter than it also ends the loop.
type FingerprintBound[T any] struct {
	// Key extracts the record identifier used for fingerprinting. Records
	// with an empty key are ignored.
	Key      func(T) string
	FullPage int

	prev map[string]struct{}
}

// NewFingerprintBound returns a fingerprint-bounded terminator. fullPage
// may be 0 to disable the short-page rule.
func NewFingerprintBound[T any](key func(T) string, fullPage int) *FingerprintBound[T] {
	return &FingerprintBound[T]{Key: key, FullPage: fullPage}
}

func (f *FingerprintBound[T]) Next(page Page[T], offset int) (bool, bool) {
	current := make(map[string]struct{}, len(page.Records))
	for _, r := range page.Records {
		if k := f.Key(r); k != "" {
			current[k] = struct{}{}
		}
	}

	if len(current) > 0 && f.prev != nil {
		stale := true
		for k := range current {
			if _, ok := f.prev[k]; !ok {
				stale = false
				break
			}
		}
		if stale {
			return false, false
		}
	}

	if len(current) > 0 {
		f.prev = current
	}

	if f.FullPage > 0 && len(page.Records) < f.FullPage {
		return true, false
	}
	return true, true
}
