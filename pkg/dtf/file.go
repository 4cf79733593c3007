package dtf

import (
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// File is a read-only view of an encoded file. Header and index are read and
// validated by Open; blocks are read on demand. A File may be shared between
// goroutines as long as each uses its own Iterator.
type File struct {
	r     io.ReaderAt
	size  int64
	meta  Metadata
	index []IndexEntry

	decOnce sync.Once
	dec     *zstd.Decoder
	decErr  error
}

// Open validates the header and index of the file held by r.
func Open(r io.ReaderAt, size int64) (*File, error) {
	hdr, err := readAt(r, 0, min(size, headerSize))
	if err != nil {
		return nil, err
	}
	meta, err := ReadMetadata(hdr)
	if err != nil {
		return nil, err
	}
	if err := checkLayout(meta, size); err != nil {
		return nil, err
	}

	raw, err := readAt(r, int64(meta.IndexOffset), int64(meta.BlockCount)*indexEntrySize)
	if err != nil {
		return nil, err
	}
	index, err := parseIndex(meta, raw)
	if err != nil {
		return nil, err
	}

	return &File{r: r, size: size, meta: meta, index: index}, nil
}

// Metadata returns the header of the file.
func (f *File) Metadata() Metadata {
	return f.meta
}

// Index returns a copy of the block index.
func (f *File) Index() []IndexEntry {
	return append([]IndexEntry(nil), f.index...)
}

// BlockCount returns the number of blocks in the file.
func (f *File) BlockCount() int {
	return len(f.index)
}

// Size returns the file size in bytes.
func (f *File) Size() int64 {
	return f.size
}

// Close releases the block decompressor, if one was created, and closes the
// underlying reader when it is an io.Closer.
func (f *File) Close() error {
	if f.dec != nil {
		f.dec.Close()
	}
	if c, ok := f.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ReadBlock decodes block i.
func (f *File) ReadBlock(i int) ([]Update, error) {
	if i < 0 || i >= len(f.index) {
		return nil, newError(ErrCorrupt, -1, "block %d out of range [0, %d)", i, len(f.index))
	}
	start := f.index[i].Offset
	end := f.meta.IndexOffset
	if i+1 < len(f.index) {
		end = f.index[i+1].Offset
	}

	raw, err := readAt(f.r, int64(start), int64(end-start))
	if err != nil {
		return nil, err
	}
	dec, err := f.decoder()
	if err != nil {
		return nil, err
	}
	return decodeBlock(raw, int64(start), f.index[i], dec)
}

// Iterator returns an iterator over every record of the file.
func (f *File) Iterator() *Iterator {
	return &Iterator{f: f}
}

// RangeIterator returns an iterator over the records whose timestamp is in
// the closed range [from, to].
func (f *File) RangeIterator(from, to uint64) *Iterator {
	it := &Iterator{f: f, ranged: true, from: from, to: to, start: f.seekBlock(from)}
	it.Reset()
	return it
}

// seekBlock returns the block to start a scan for from: the last block whose
// first timestamp is strictly below from. Runs of equal timestamps may span
// blocks, so the block starting exactly at from is not enough.
func (f *File) seekBlock(from uint64) int {
	i := sort.Search(len(f.index), func(i int) bool {
		return f.index[i].FirstTimestamp >= from
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

func (f *File) lastRecord() (Update, error) {
	records, err := f.ReadBlock(len(f.index) - 1)
	if err != nil {
		return Update{}, err
	}
	return records[len(records)-1], nil
}

func (f *File) decoder() (*zstd.Decoder, error) {
	if !f.meta.Compressed {
		return nil, nil
	}
	f.decOnce.Do(func() {
		f.dec, f.decErr = newBlockDecoder()
	})
	return f.dec, f.decErr
}

func readAt(r io.ReaderAt, off, n int64) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	read, err := r.ReadAt(buf, off)
	if read == len(buf) {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, newError(ErrTruncated, off+int64(read), "need %d bytes, read %d", n, read)
	}
	return nil, err
}

// Iterator yields records block by block, checking ordering as it goes.
//
//	it := f.Iterator()
//	for it.Next() {
//		u := it.Update()
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	f        *File
	ranged   bool
	from, to uint64
	start    int

	next    int
	block   int
	buf     []Update
	pos     int
	cur     Update
	last    Update
	started bool
	pending error
	err     error
	done    bool
}

// Next advances to the next record. It returns false at the end of the file,
// past the end of the range, or on error.
func (it *Iterator) Next() bool {
	for {
		if it.done || it.err != nil {
			return false
		}
		if it.pos < len(it.buf) {
			u := it.buf[it.pos]
			it.pos++
			if it.ranged {
				if u.Timestamp > it.to {
					it.done = true
					return false
				}
				if u.Timestamp < it.from {
					continue
				}
			}
			it.cur = u
			return true
		}
		if it.pending != nil {
			it.err = it.pending
			return false
		}
		if it.next >= len(it.f.index) {
			it.done = true
			return false
		}
		it.load()
	}
}

func (it *Iterator) load() {
	i := it.next
	it.next++
	it.buf, it.pos = nil, 0

	records, err := it.f.ReadBlock(i)
	if err != nil && !errors.Is(err, ErrOrderingViolation) {
		it.err = err
		return
	}
	if len(records) > 0 && it.started {
		first := records[0]
		switch {
		case first.Timestamp < it.last.Timestamp:
			it.err = newError(ErrOrderingViolation, int64(it.f.index[i].Offset), "block %d starts at ts %d, before %d", i, first.Timestamp, it.last.Timestamp)
			return
		case first.Sequence <= it.last.Sequence:
			it.err = newError(ErrOrderingViolation, int64(it.f.index[i].Offset), "block %d starts at seq %d, not after %d", i, first.Sequence, it.last.Sequence)
			return
		}
	}

	it.buf, it.block, it.pending = records, i, err
	if len(records) > 0 {
		it.last = records[len(records)-1]
		it.started = true
	}
}

// Update returns the current record.
func (it *Iterator) Update() Update {
	return it.cur
}

// Block returns the index of the block the current record came from.
func (it *Iterator) Block() int {
	return it.block
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Reset rewinds the iterator to its first record.
func (it *Iterator) Reset() {
	it.next, it.block = it.start, it.start
	it.buf, it.pos = nil, 0
	it.cur, it.last = Update{}, Update{}
	it.started = false
	it.pending, it.err = nil, nil
	it.done = it.ranged && it.from > it.to
}
