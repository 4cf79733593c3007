package dtf

import (
	"bytes"
	"errors"

	apperrors "github.com/muhammadchandra19/tickstore/pkg/errors"
)

// Decode returns every record of data in file order: by timestamp, then by
// sequence. On an ordering violation the records before the offending one are
// returned together with the error; every other error returns no records.
func Decode(data []byte) ([]Update, error) {
	f, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.ReadAll()
}

// SeekRange returns the records whose timestamp lies in the closed range
// [from, to]. Only the blocks that can hold such records are decoded.
func SeekRange(data []byte, from, to uint64) ([]Update, error) {
	f, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return collect(f.RangeIterator(from, to), 0)
}

// Verify scans the whole file, recomputes its metadata and compares it with
// the header. A disagreement is reported as ErrMetadataMismatch and is never
// corrected.
func Verify(data []byte) (Metadata, error) {
	f, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()
	return f.Verify()
}

// ReadAll decodes the whole file and checks the header against the records.
func (f *File) ReadAll() ([]Update, error) {
	records, err := collect(f.Iterator(), f.meta.RecordCount)
	if err != nil {
		return records, err
	}
	if details := mismatch(f.meta, summarize(f.meta, records)); details.HasDetails() {
		return nil, &Error{Kind: ErrMetadataMismatch, Offset: 12, Details: details}
	}
	return records, nil
}

// Verify scans every block without retaining records and returns the
// recomputed metadata.
func (f *File) Verify() (Metadata, error) {
	computed := f.meta
	computed.RecordCount, computed.MinTimestamp, computed.MaxTimestamp = 0, 0, 0

	it := f.Iterator()
	for it.Next() {
		u := it.Update()
		if computed.RecordCount == 0 || u.Timestamp < computed.MinTimestamp {
			computed.MinTimestamp = u.Timestamp
		}
		if u.Timestamp > computed.MaxTimestamp {
			computed.MaxTimestamp = u.Timestamp
		}
		computed.RecordCount++
	}
	if err := it.Err(); err != nil {
		return computed, err
	}
	if details := mismatch(f.meta, computed); details.HasDetails() {
		return computed, &Error{Kind: ErrMetadataMismatch, Offset: 12, Details: details}
	}
	return computed, nil
}

// collect drains it. Ordering violations keep the prefix; other errors drop it.
func collect(it *Iterator, hint uint64) ([]Update, error) {
	records := make([]Update, 0, min(hint, 1<<16))
	for it.Next() {
		records = append(records, it.Update())
	}
	if err := it.Err(); err != nil {
		if errors.Is(err, ErrOrderingViolation) {
			return records, err
		}
		return nil, err
	}
	return records, nil
}

func summarize(meta Metadata, records []Update) Metadata {
	meta.RecordCount = uint64(len(records))
	meta.MinTimestamp, meta.MaxTimestamp = 0, 0
	if len(records) > 0 {
		meta.MinTimestamp = records[0].Timestamp
		meta.MaxTimestamp = records[len(records)-1].Timestamp
	}
	return meta
}

// mismatch lists every summary field where stored and computed disagree.
func mismatch(stored, computed Metadata) *apperrors.BaseError {
	details := apperrors.NewBaseError()
	if stored.RecordCount != computed.RecordCount {
		details.AddErrorDetails(apperrors.NewMismatchDetails("record_count", stored.RecordCount, computed.RecordCount))
	}
	if stored.MinTimestamp != computed.MinTimestamp {
		details.AddErrorDetails(apperrors.NewMismatchDetails("min_timestamp", stored.MinTimestamp, computed.MinTimestamp))
	}
	if stored.MaxTimestamp != computed.MaxTimestamp {
		details.AddErrorDetails(apperrors.NewMismatchDetails("max_timestamp", stored.MaxTimestamp, computed.MaxTimestamp))
	}
	return details
}
