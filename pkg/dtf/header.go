package dtf

import (
	"bytes"
	"encoding/binary"
)

// FormatVersion is the version written by this package.
const FormatVersion uint16 = 1

const (
	headerSize     = 48
	indexEntrySize = 20
	blockMarker    = 0x01

	flagCompressed = 1 << 0
)

var (
	magic = [5]byte{'D', 'T', 'F', 0x90, 0x02}
	order = binary.BigEndian
)

// Metadata is the summary stored in the file header.
type Metadata struct {
	FormatVersion uint16 `json:"format_version"`
	Compressed    bool   `json:"compressed"`
	SymbolCode    uint32 `json:"symbol_code"`
	RecordCount   uint64 `json:"record_count"`
	MinTimestamp  uint64 `json:"min_ts"`
	MaxTimestamp  uint64 `json:"max_ts"`
	BlockCount    uint32 `json:"block_count"`
	IndexOffset   uint64 `json:"index_offset"`
}

// Covers reports whether the closed range [from, to] overlaps the file's time range.
// A file without records covers nothing.
func (m Metadata) Covers(from, to uint64) bool {
	return m.RecordCount > 0 && from <= to && m.MinTimestamp <= to && m.MaxTimestamp >= from
}

func (m Metadata) marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf, magic[:])
	order.PutUint16(buf[5:], m.FormatVersion)
	if m.Compressed {
		buf[7] = flagCompressed
	}
	order.PutUint32(buf[8:], m.SymbolCode)
	order.PutUint64(buf[12:], m.RecordCount)
	order.PutUint64(buf[20:], m.MinTimestamp)
	order.PutUint64(buf[28:], m.MaxTimestamp)
	order.PutUint32(buf[36:], m.BlockCount)
	order.PutUint64(buf[40:], m.IndexOffset)
	return buf
}

// IsDTF reports whether data starts with the DTF magic bytes.
func IsDTF(data []byte) bool {
	return len(data) >= len(magic) && bytes.Equal(data[:len(magic)], magic[:])
}

// ReadMetadata parses the header only. It does not touch blocks or the index.
func ReadMetadata(data []byte) (Metadata, error) {
	if len(data) < len(magic) {
		if bytes.HasPrefix(magic[:], data) {
			return Metadata{}, newError(ErrTruncated, int64(len(data)), "header needs %d bytes, have %d", headerSize, len(data))
		}
		return Metadata{}, newError(ErrBadMagic, 0, "")
	}
	if !IsDTF(data) {
		return Metadata{}, newError(ErrBadMagic, 0, "got % x", data[:len(magic)])
	}
	if len(data) < 7 {
		return Metadata{}, newError(ErrTruncated, int64(len(data)), "header needs %d bytes, have %d", headerSize, len(data))
	}
	version := order.Uint16(data[5:])
	switch {
	case version == 0:
		return Metadata{}, newError(ErrCorrupt, 5, "version 0")
	case version > FormatVersion:
		return Metadata{}, newError(ErrUnsupportedVersion, 5, "version %d", version)
	}
	if len(data) < headerSize {
		return Metadata{}, newError(ErrTruncated, int64(len(data)), "header needs %d bytes, have %d", headerSize, len(data))
	}

	flags := data[7]
	if flags&^flagCompressed != 0 {
		return Metadata{}, newError(ErrCorrupt, 7, "unknown header flags %#x", flags)
	}

	return Metadata{
		FormatVersion: version,
		Compressed:    flags&flagCompressed != 0,
		SymbolCode:    order.Uint32(data[8:]),
		RecordCount:   order.Uint64(data[12:]),
		MinTimestamp:  order.Uint64(data[20:]),
		MaxTimestamp:  order.Uint64(data[28:]),
		BlockCount:    order.Uint32(data[36:]),
		IndexOffset:   order.Uint64(data[40:]),
	}, nil
}

// IndexEntry locates one block.
type IndexEntry struct {
	Offset         uint64 `json:"offset"`
	FirstTimestamp uint64 `json:"first_ts"`
	Count          uint32 `json:"count"`
}

func marshalIndex(entries []IndexEntry) []byte {
	buf := make([]byte, len(entries)*indexEntrySize)
	for i, e := range entries {
		b := buf[i*indexEntrySize:]
		order.PutUint64(b, e.Offset)
		order.PutUint64(b[8:], e.FirstTimestamp)
		order.PutUint32(b[16:], e.Count)
	}
	return buf
}

// parseIndex decodes the index and checks it against the header.
func parseIndex(meta Metadata, raw []byte) ([]IndexEntry, error) {
	entries := make([]IndexEntry, meta.BlockCount)
	var total uint64
	prevEnd := uint64(headerSize)
	for i := range entries {
		b := raw[i*indexEntrySize:]
		e := IndexEntry{
			Offset:         order.Uint64(b),
			FirstTimestamp: order.Uint64(b[8:]),
			Count:          order.Uint32(b[16:]),
		}
		entryOffset := int64(meta.IndexOffset) + int64(i*indexEntrySize)
		switch {
		case e.Count == 0:
			return nil, newError(ErrCorrupt, entryOffset, "index entry %d has no records", i)
		case i == 0 && e.Offset != headerSize:
			return nil, newError(ErrCorrupt, entryOffset, "first block at %d, want %d", e.Offset, headerSize)
		case e.Offset < prevEnd || e.Offset > meta.IndexOffset || meta.IndexOffset-e.Offset < blockHeaderSize:
			return nil, newError(ErrCorrupt, entryOffset, "index entry %d points at %d", i, e.Offset)
		}
		total += uint64(e.Count)
		prevEnd = e.Offset + blockHeaderSize
		entries[i] = e
	}
	if total != meta.RecordCount {
		details := mismatch(meta, Metadata{RecordCount: total, MinTimestamp: meta.MinTimestamp, MaxTimestamp: meta.MaxTimestamp})
		return nil, &Error{Kind: ErrMetadataMismatch, Offset: 12, Msg: "index disagrees with header", Details: details}
	}
	return entries, nil
}

// checkLayout validates that header, blocks and index tile the file exactly.
func checkLayout(meta Metadata, size int64) error {
	if meta.BlockCount == 0 && meta.RecordCount != 0 {
		return newError(ErrCorrupt, 36, "%d records but no blocks", meta.RecordCount)
	}
	if meta.IndexOffset < headerSize {
		return newError(ErrCorrupt, 40, "index offset %d inside header", meta.IndexOffset)
	}
	if meta.IndexOffset > uint64(size) {
		return newError(ErrTruncated, size, "file ends at %d, index starts at %d", size, meta.IndexOffset)
	}
	end := meta.IndexOffset + uint64(meta.BlockCount)*indexEntrySize
	switch {
	case end > uint64(size):
		return newError(ErrTruncated, size, "file ends at %d, index ends at %d", size, end)
	case end < uint64(size):
		return newError(ErrCorrupt, int64(end), "%d trailing bytes", uint64(size)-end)
	}
	return nil
}
