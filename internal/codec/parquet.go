package codec

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"stockdownloader/internal/series"
)

// parquetRow is the parquet schema; numbers are stored as doubles.
type parquetRow struct {
	Date             string  `parquet:"date"`
	Open             float64 `parquet:"open"`
	High             float64 `parquet:"high"`
	Low              float64 `parquet:"low"`
	Close            float64 `parquet:"close"`
	AdjClose         float64 `parquet:"adjClose"`
	Volume           float64 `parquet:"volume"`
	UnadjustedVolume float64 `parquet:"unadjustedVolume"`
	Change           float64 `parquet:"change"`
	ChangePercent    float64 `parquet:"changePercent"`
	VWAP             float64 `parquet:"vwap"`
	Label            string  `parquet:"label"`
	ChangeOverTime   float64 `parquet:"changeOverTime"`
}

func encodeParquet(w io.Writer, s series.Series) error {
	rows := make([]parquetRow, len(s.Records))
	for i, r := range s.Records {
		rows[i] = parquetRow{
			Date:             r.Date,
			Open:             r.Open.InexactFloat64(),
			High:             r.High.InexactFloat64(),
			Low:              r.Low.InexactFloat64(),
			Close:            r.Close.InexactFloat64(),
			AdjClose:         r.AdjClose.InexactFloat64(),
			Volume:           r.Volume.InexactFloat64(),
			UnadjustedVolume: r.UnadjustedVolume.InexactFloat64(),
			Change:           r.Change.InexactFloat64(),
			ChangePercent:    r.ChangePercent.InexactFloat64(),
			VWAP:             r.VWAP.InexactFloat64(),
			Label:            r.Label,
			ChangeOverTime:   r.ChangeOverTime.InexactFloat64(),
		}
	}
	if err := parquet.Write(w, rows); err != nil {
		return fmt.Errorf("writing parquet: %w", err)
	}
	return nil
}
