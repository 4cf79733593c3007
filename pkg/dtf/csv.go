package dtf

import (
	"encoding/csv"
	"io"
	"strconv"
)

var csvHeader = []string{"ts", "seq", "kind", "side", "price", "size"}

// WriteCSV renders updates as CSV with a header row.
func WriteCSV(w io.Writer, updates []Update) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, u := range updates {
		row := []string{
			strconv.FormatUint(u.Timestamp, 10),
			strconv.FormatUint(u.Sequence, 10),
			u.Kind.String(),
			u.Side.String(),
			strconv.FormatFloat(u.Price, 'f', -1, 64),
			strconv.FormatFloat(u.Size, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
