// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageSize is the default number of rows in a listed page.
const PageSize = 50

// MaxPageSize caps the ?limit= query parameter.
const MaxPageSize = 200

// Direction indicates the pagination direction.
type Direction int

const (
	Forward  Direction = iota // Default: sort ascending, use "gt" for cursor
	Backward                  // Sort descending, use "lt" for cursor
)

// KeysetConfig holds the result of configuring keyset pagination.
type KeysetConfig struct {
	Direction Direction
	SortOrder int // 1 for ascending, -1 for descending
	Cursor    *wafflemongo.Cursor
	Limit     int

	before, after string
}

// FromRequest reads ?before=, ?after= and ?limit= from r.
func FromRequest(r *http.Request) KeysetConfig {
	cfg := ConfigureKeyset(query.Get(r, "before"), query.Get(r, "after"))
	if n, err := strconv.Atoi(query.Get(r, "limit")); err == nil && n > 0 {
		if n > MaxPageSize {
			n = MaxPageSize
		}
		cfg.Limit = n
	}
	return cfg
}

// ConfigureKeyset determines pagination direction and decodes the cursor.
func ConfigureKeyset(before, after string) KeysetConfig {
	cfg := KeysetConfig{
		Direction: Forward,
		SortOrder: 1,
		Limit:     PageSize,
		before:    before,
		after:     after,
	}

	if before != "" {
		cfg.Direction = Backward
		cfg.SortOrder = -1
		if c, ok := wafflemongo.DecodeCursor(before); ok {
			cfg.Cursor = &c
		}
	} else if after != "" {
		if c, ok := wafflemongo.DecodeCursor(after); ok {
			cfg.Cursor = &c
		}
	}

	return cfg
}

func (cfg KeysetConfig) size() int {
	if cfg.Limit <= 0 {
		return PageSize
	}
	return cfg.Limit
}

// ApplyToFind sets sort and a look-ahead limit (one extra row to detect a
// further page).
func (cfg KeysetConfig) ApplyToFind(find *options.FindOptions, sortField string) {
	find.SetSort(bson.D{
		{Key: sortField, Value: cfg.SortOrder},
		{Key: "_id", Value: cfg.SortOrder},
	}).SetLimit(int64(cfg.size() + 1))
}

// KeysetWindow returns the cursor condition for the query filter.
// Returns nil if no cursor is set.
func (cfg KeysetConfig) KeysetWindow(sortField string) bson.M {
	if cfg.Cursor == nil {
		return nil
	}
	dir := "gt"
	if cfg.Direction == Backward {
		dir = "lt"
	}
	return wafflemongo.KeysetWindow(sortField, dir, cfg.Cursor.CI, cfg.Cursor.ID)
}

// Result holds the output of TrimPage for keyset pagination.
type Result struct {
	HasPrev bool
	HasNext bool
}

// TrimPage trims rows fetched with ApplyToFind to the page size, restores
// ascending order after a backward fetch, and reports whether neighbouring
// pages exist.
func TrimPage[T any](cfg KeysetConfig, rows *[]T) Result {
	size := cfg.size()
	var res Result

	if cfg.before != "" {
		if len(*rows) > size {
			*rows = (*rows)[:size]
			res.HasPrev = true
		}
		Reverse(*rows)
		res.HasNext = true
		return res
	}

	if len(*rows) > size {
		*rows = (*rows)[:size]
		res.HasNext = true
	}
	res.HasPrev = cfg.after != ""
	return res
}

// Reverse reverses a slice in place.
func Reverse[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// BuildCursors creates prev/next cursor strings from the first and last elements.
// keyFn extracts the sort key from an element.
// idFn extracts the ObjectID from an element.
func BuildCursors[T any](rows []T, keyFn func(T) string, idFn func(T) primitive.ObjectID) (prev, next string) {
	if len(rows) == 0 {
		return "", ""
	}
	first := rows[0]
	last := rows[len(rows)-1]
	prev = wafflemongo.EncodeCursor(keyFn(first), idFn(first))
	next = wafflemongo.EncodeCursor(keyFn(last), idFn(last))
	return prev, next
}
