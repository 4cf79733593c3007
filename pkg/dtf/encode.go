package dtf

import (
	"bytes"

	"github.com/klauspost/compress/zstd"
)

// DefaultBlockSize is the number of records per block when none is configured.
const DefaultBlockSize = 1024

// MaxBlockSize is the largest number of records a block may hold. Decode
// rejects blocks that claim more.
const MaxBlockSize = 1 << 20

type encodeOptions struct {
	blockSize  int
	compress   bool
	contiguous bool
}

// EncodeOption configures Encode and Append.
type EncodeOption func(*encodeOptions)

// WithBlockSize sets the number of records per block. Values below 1 are
// ignored and values above MaxBlockSize are clamped.
func WithBlockSize(n int) EncodeOption {
	return func(o *encodeOptions) {
		if n > 0 {
			o.blockSize = min(n, MaxBlockSize)
		}
	}
}

// WithCompression zstd-compresses block bodies.
func WithCompression() EncodeOption {
	return func(o *encodeOptions) {
		o.compress = true
	}
}

// WithContiguousSequence rejects input whose sequence numbers skip values.
func WithContiguousSequence() EncodeOption {
	return func(o *encodeOptions) {
		o.contiguous = true
	}
}

func buildOptions(opts []EncodeOption) encodeOptions {
	o := encodeOptions{blockSize: DefaultBlockSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// EncodeEmpty returns a metadata-only file with no records.
func EncodeEmpty(symbolCode uint32) []byte {
	return Metadata{
		FormatVersion: FormatVersion,
		SymbolCode:    symbolCode,
		IndexOffset:   headerSize,
	}.marshal()
}

// Encode serializes records, which must be ordered by timestamp with strictly
// increasing sequence numbers, into a DTF file for symbolCode.
func Encode(records []Update, symbolCode uint32, opts ...EncodeOption) ([]byte, error) {
	if len(records) == 0 {
		return nil, newError(ErrEmptyInput, -1, "no records")
	}
	o := buildOptions(opts)
	if err := validateInput(records, nil, o.contiguous); err != nil {
		return nil, err
	}

	meta := Metadata{
		FormatVersion: FormatVersion,
		Compressed:    o.compress,
		SymbolCode:    symbolCode,
	}
	var buf bytes.Buffer
	buf.Write(make([]byte, headerSize))

	index, err := writeBlocks(&buf, records, o)
	if err != nil {
		return nil, err
	}
	return finish(&buf, meta, index, records[0].Timestamp, records[len(records)-1].Timestamp)
}

// Append returns a copy of existing with records added after its last record.
// records must continue the file's ordering. Block size comes from opts; the
// compression setting of existing is kept unless existing has no records.
func Append(existing []byte, records []Update, opts ...EncodeOption) ([]byte, error) {
	f, err := Open(bytes.NewReader(existing), int64(len(existing)))
	if err != nil {
		return nil, err
	}
	meta := f.Metadata()
	if len(records) == 0 {
		return nil, newError(ErrEmptyInput, -1, "no records")
	}

	if meta.RecordCount == 0 {
		return Encode(records, meta.SymbolCode, opts...)
	}
	o := buildOptions(opts)
	o.compress = meta.Compressed

	last, err := f.lastRecord()
	if err != nil {
		return nil, err
	}
	if err := validateInput(records, &last, o.contiguous); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(make([]byte, headerSize))
	buf.Write(existing[headerSize:meta.IndexOffset])

	index, err := writeBlocks(&buf, records, o)
	if err != nil {
		return nil, err
	}
	meta.RecordCount = 0
	return finish(&buf, meta, append(f.Index(), index...), meta.MinTimestamp, records[len(records)-1].Timestamp)
}

func writeBlocks(buf *bytes.Buffer, records []Update, o encodeOptions) ([]IndexEntry, error) {
	var enc *zstd.Encoder
	if o.compress {
		var err error
		if enc, err = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1)); err != nil {
			return nil, err
		}
		defer enc.Close()
	}

	index := make([]IndexEntry, 0, (len(records)+o.blockSize-1)/o.blockSize)
	for start := 0; start < len(records); start += o.blockSize {
		end := min(start+o.blockSize, len(records))
		index = append(index, IndexEntry{
			Offset:         uint64(buf.Len()),
			FirstTimestamp: records[start].Timestamp,
			Count:          uint32(end - start),
		})
		buf.Write(encodeBlock(records[start:end], enc))
	}
	return index, nil
}

// finish appends the index and fills in the header.
func finish(buf *bytes.Buffer, meta Metadata, index []IndexEntry, minTs, maxTs uint64) ([]byte, error) {
	meta.IndexOffset = uint64(buf.Len())
	meta.BlockCount = uint32(len(index))
	meta.MinTimestamp = minTs
	meta.MaxTimestamp = maxTs
	for _, e := range index {
		meta.RecordCount += uint64(e.Count)
	}
	buf.Write(marshalIndex(index))

	out := buf.Bytes()
	copy(out, meta.marshal())
	return out, nil
}

// validateInput checks every record and the ordering of the sequence,
// continuing from prev when it is set.
func validateInput(records []Update, prev *Update, contiguous bool) error {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return newError(ErrInvalidRecord, -1, "record %d: %s", i, err.(*Error).Msg)
		}
		if prev != nil {
			switch {
			case r.Timestamp < prev.Timestamp:
				return newError(ErrUnsortedInput, -1, "record %d: timestamp %d before %d", i, r.Timestamp, prev.Timestamp)
			case r.Sequence <= prev.Sequence:
				return newError(ErrUnsortedInput, -1, "record %d: sequence %d not after %d", i, r.Sequence, prev.Sequence)
			case contiguous && r.Sequence != prev.Sequence+1:
				return newError(ErrUnsortedInput, -1, "record %d: sequence %d does not follow %d", i, r.Sequence, prev.Sequence)
			}
		}
		prev = &records[i]
	}
	return nil
}
