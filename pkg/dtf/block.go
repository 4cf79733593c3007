package dtf

import (
	"encoding/binary"
	"math"

	"github.com/klauspost/compress/zstd"
)

// blockHeaderSize is marker(1) + first ts(8) + first seq(8) + flags(1) +
// price(8) + size(8) + count(4) + body length(4).
const blockHeaderSize = 42

// Bounds of one body row: two uvarints, flags, price, size.
const (
	minRowSize = 1 + 1 + 1 + 8 + 8
	maxRowSize = 2*binary.MaxVarintLen64 + 1 + 8 + 8
)

// maxBodySize bounds a decompressed block body.
const maxBodySize = (MaxBlockSize - 1) * maxRowSize

func newBlockDecoder() (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(maxBodySize))
}

// decompress inflates a block body after checking the size its frame
// declares against what count rows can occupy.
func decompress(dec *zstd.Decoder, body []byte, count uint32, offset int64) ([]byte, error) {
	limit := uint64(count-1) * maxRowSize
	var h zstd.Header
	if err := h.Decode(body); err != nil {
		return nil, newError(ErrCorrupt, offset, "block frame header: %v", err)
	}
	if h.HasFCS && h.FrameContentSize > limit {
		return nil, newError(ErrCorrupt, offset, "frame declares %d bytes, %d records fit in %d", h.FrameContentSize, count, limit)
	}
	out, err := dec.DecodeAll(body, nil)
	if err != nil {
		return nil, newError(ErrCorrupt, offset, "decompress block: %v", err)
	}
	if uint64(len(out)) > limit {
		return nil, newError(ErrCorrupt, offset, "block inflates to %d bytes, %d records fit in %d", len(out), count, limit)
	}
	return out, nil
}

func bodyOffset(blockOffset int64) int64 {
	return blockOffset + blockHeaderSize
}

// encodeBlock writes records as one block. The first record is stored in full
// in the block header; the rest are delta-encoded in the body.
func encodeBlock(records []Update, enc *zstd.Encoder) []byte {
	first := records[0]

	body := make([]byte, 0, (len(records)-1)*maxRowSize)
	prev := first
	for _, r := range records[1:] {
		body = binary.AppendUvarint(body, r.Timestamp-prev.Timestamp)
		body = binary.AppendUvarint(body, r.Sequence-prev.Sequence)
		body = append(body, r.flags())
		body = order.AppendUint64(body, math.Float64bits(r.Price))
		body = order.AppendUint64(body, math.Float64bits(r.Size))
		prev = r
	}
	if enc != nil && len(body) > 0 {
		body = enc.EncodeAll(body, nil)
	}

	buf := make([]byte, blockHeaderSize, blockHeaderSize+len(body))
	buf[0] = blockMarker
	order.PutUint64(buf[1:], first.Timestamp)
	order.PutUint64(buf[9:], first.Sequence)
	buf[17] = first.flags()
	order.PutUint64(buf[18:], math.Float64bits(first.Price))
	order.PutUint64(buf[26:], math.Float64bits(first.Size))
	order.PutUint32(buf[34:], uint32(len(records)))
	order.PutUint32(buf[38:], uint32(len(body)))
	return append(buf, body...)
}

// decodeBlock decodes one block located at offset. raw must span exactly the
// block. On an ordering violation inside the block the records decoded so far
// are returned with the error.
func decodeBlock(raw []byte, offset int64, entry IndexEntry, dec *zstd.Decoder) ([]Update, error) {
	if len(raw) < blockHeaderSize {
		return nil, newError(ErrTruncated, offset+int64(len(raw)), "block header needs %d bytes, have %d", blockHeaderSize, len(raw))
	}
	if raw[0] != blockMarker {
		return nil, newError(ErrCorrupt, offset, "block marker %#x", raw[0])
	}

	first := Update{
		Timestamp: order.Uint64(raw[1:]),
		Sequence:  order.Uint64(raw[9:]),
		Price:     math.Float64frombits(order.Uint64(raw[18:])),
		Size:      math.Float64frombits(order.Uint64(raw[26:])),
	}
	var ok bool
	if first.Kind, first.Side, ok = unpackFlags(raw[17]); !ok {
		return nil, newError(ErrCorrupt, offset+17, "record flags %#x", raw[17])
	}
	count := order.Uint32(raw[34:])
	bodyLen := int(order.Uint32(raw[38:]))

	switch {
	case count > MaxBlockSize:
		return nil, newError(ErrCorrupt, offset+34, "block holds %d records, limit is %d", count, MaxBlockSize)
	case count != entry.Count:
		return nil, newError(ErrCorrupt, offset+34, "block holds %d records, index says %d", count, entry.Count)
	case first.Timestamp != entry.FirstTimestamp:
		return nil, newError(ErrCorrupt, offset+1, "block starts at ts %d, index says %d", first.Timestamp, entry.FirstTimestamp)
	case blockHeaderSize+bodyLen > len(raw):
		return nil, newError(ErrTruncated, offset+int64(len(raw)), "block body needs %d bytes, have %d", bodyLen, len(raw)-blockHeaderSize)
	case blockHeaderSize+bodyLen < len(raw):
		return nil, newError(ErrCorrupt, offset+int64(blockHeaderSize+bodyLen), "%d stray bytes after block", len(raw)-blockHeaderSize-bodyLen)
	}

	body := raw[blockHeaderSize:]
	if dec != nil && len(body) > 0 {
		var err error
		if body, err = decompress(dec, body, count, offset+blockHeaderSize); err != nil {
			return nil, err
		}
	}

	if uint64(count-1)*minRowSize > uint64(len(body)) {
		return nil, newError(ErrCorrupt, bodyOffset(offset), "%d records cannot fit in %d body bytes", count, len(body))
	}

	records := make([]Update, 1, count)
	records[0] = first
	prev := first
	pos := 0
	bodyStart := bodyOffset(offset)
	for i := uint32(1); i < count; i++ {
		rowOffset := bodyStart + int64(pos)
		dts, n := binary.Uvarint(body[pos:])
		if n <= 0 {
			return nil, newError(ErrCorrupt, rowOffset, "bad timestamp delta in row %d", i)
		}
		pos += n
		dseq, n := binary.Uvarint(body[pos:])
		if n <= 0 {
			return nil, newError(ErrCorrupt, rowOffset, "bad sequence delta in row %d", i)
		}
		pos += n
		if len(body)-pos < 17 {
			return nil, newError(ErrCorrupt, rowOffset, "row %d runs past block body", i)
		}

		r := Update{
			Timestamp: prev.Timestamp + dts,
			Sequence:  prev.Sequence + dseq,
			Price:     math.Float64frombits(order.Uint64(body[pos+1:])),
			Size:      math.Float64frombits(order.Uint64(body[pos+9:])),
		}
		if r.Kind, r.Side, ok = unpackFlags(body[pos]); !ok {
			return nil, newError(ErrCorrupt, rowOffset, "record flags %#x", body[pos])
		}
		pos += 17

		if r.Timestamp < prev.Timestamp || r.Sequence < prev.Sequence {
			return nil, newError(ErrCorrupt, rowOffset, "delta overflow in row %d", i)
		}
		if dseq == 0 {
			return records, newError(ErrOrderingViolation, rowOffset, "sequence %d repeats", r.Sequence)
		}
		records = append(records, r)
		prev = r
	}
	if pos != len(body) {
		return nil, newError(ErrCorrupt, bodyStart+int64(pos), "%d unused body bytes", len(body)-pos)
	}
	return records, nil
}
