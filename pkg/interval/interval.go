package interval

import (
	"fmt"
	"time"
)

// Interval is a candle window. Buckets are aligned to the Unix epoch:
// a bucket starts at floor(ts / window) * window.
type Interval struct {
	Name     string
	Duration time.Duration
	Format   string
}

// Supported intervals
var (
	Interval1s  = Interval{Name: "1s", Duration: time.Second, Format: "2006-01-02 15:04:05"}
	Interval1m  = Interval{Name: "1m", Duration: time.Minute, Format: "2006-01-02 15:04:00"}
	Interval5m  = Interval{Name: "5m", Duration: 5 * time.Minute, Format: "2006-01-02 15:04:00"}
	Interval15m = Interval{Name: "15m", Duration: 15 * time.Minute, Format: "2006-01-02 15:04:00"}
	Interval30m = Interval{Name: "30m", Duration: 30 * time.Minute, Format: "2006-01-02 15:04:00"}
	Interval1h  = Interval{Name: "1h", Duration: time.Hour, Format: "2006-01-02 15:00:00"}
	Interval4h  = Interval{Name: "4h", Duration: 4 * time.Hour, Format: "2006-01-02 15:00:00"}
	Interval1d  = Interval{Name: "1d", Duration: 24 * time.Hour, Format: "2006-01-02 00:00:00"}
)

// AllIntervals lists the supported intervals, shortest first.
var AllIntervals = []Interval{
	Interval1s, Interval1m, Interval5m, Interval15m,
	Interval30m, Interval1h, Interval4h, Interval1d,
}

// GetInterval returns an interval by name
func GetInterval(name string) (Interval, error) {
	for _, interval := range AllIntervals {
		if interval.Name == name {
			return interval, nil
		}
	}
	return Interval{}, fmt.Errorf("unsupported interval: %s", name)
}

// IsValidInterval checks if interval name is supported
func IsValidInterval(name string) bool {
	_, err := GetInterval(name)
	return err == nil
}

// Window returns the interval length in record timestamp units (microseconds).
func (i Interval) Window() uint64 {
	return uint64(i.Duration.Microseconds())
}

// BucketStart returns the start of the bucket holding ts, both in microseconds.
func (i Interval) BucketStart(ts uint64) uint64 {
	w := i.Window()
	return ts / w * w
}

// CalculateBucketTime calculates the start time of the bucket holding timestamp.
func (i Interval) CalculateBucketTime(timestamp time.Time) time.Time {
	return ToTime(i.BucketStart(FromTime(timestamp)))
}

// GetBucketRange returns the start and end time of the interval bucket
func (i Interval) GetBucketRange(timestamp time.Time) (start, end time.Time) {
	start = i.CalculateBucketTime(timestamp)
	end = start.Add(i.Duration)
	return start, end
}

// FormatBucket renders the bucket start of ts with the interval's layout, in UTC.
func (i Interval) FormatBucket(ts uint64) string {
	return ToTime(i.BucketStart(ts)).Format(i.Format)
}

// ToTime converts epoch microseconds to a UTC time.
func ToTime(ts uint64) time.Time {
	return time.UnixMicro(int64(ts)).UTC()
}

// FromTime converts a time to epoch microseconds. Times before the epoch map to 0.
func FromTime(t time.Time) uint64 {
	us := t.UnixMicro()
	if us < 0 {
		return 0
	}
	return uint64(us)
}
