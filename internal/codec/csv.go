package codec

import (
	"encoding/csv"
	"fmt"
	"io"

	"stockdownloader/internal/series"
)

// encodeCSV writes a header row then one row per record, without an index column.
func encodeCSV(w io.Writer, s series.Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	row := make([]string, len(columns))
	for _, r := range s.Records {
		for i, c := range columns {
			if c.text != nil {
				row[i] = c.text(r)
			} else {
				row[i] = c.num(r).String()
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row %s: %w", r.Date, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
