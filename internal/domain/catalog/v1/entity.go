package catalogv1

import (
	"errors"
	"time"

	"github.com/muhammadchandra19/tickstore/pkg/dtf"
)

// ErrNotFound is returned for a path the catalog does not know.
var ErrNotFound = errors.New("catalog entry not found")

// Entry describes one finalized DTF file. The summary fields mirror the file
// header so files can be triaged without opening them.
type Entry struct {
	Path       string    `json:"path"`
	Key        string    `json:"key"`
	Symbol     string    `json:"symbol"`
	SymbolCode uint32    `json:"symbol_code"`
	Records    uint64    `json:"records"`
	MinTs      uint64    `json:"min_ts"`
	MaxTs      uint64    `json:"max_ts"`
	Blocks     uint32    `json:"blocks"`
	Compressed bool      `json:"compressed"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewEntry builds an entry from a file's metadata.
func NewEntry(path, key, symbol string, size int64, meta dtf.Metadata) Entry {
	return Entry{
		Path:       path,
		Key:        key,
		Symbol:     symbol,
		SymbolCode: meta.SymbolCode,
		Records:    meta.RecordCount,
		MinTs:      meta.MinTimestamp,
		MaxTs:      meta.MaxTimestamp,
		Blocks:     meta.BlockCount,
		Compressed: meta.Compressed,
		Size:       size,
		CreatedAt:  time.Now().UTC(),
	}
}

// Overlaps reports whether the entry may hold records in [from, to].
func (e Entry) Overlaps(from, to uint64) bool {
	return e.Records > 0 && e.MinTs <= to && e.MaxTs >= from
}
