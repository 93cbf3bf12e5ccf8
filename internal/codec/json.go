package codec

import (
	"encoding/json"
	"io"

	"stockdownloader/internal/series"
)

// jsonRecord renders decimals as bare JSON numbers.
type jsonRecord struct {
	Date             string      `json:"date"`
	Open             json.Number `json:"open"`
	High             json.Number `json:"high"`
	Low              json.Number `json:"low"`
	Close            json.Number `json:"close"`
	AdjClose         json.Number `json:"adjClose"`
	Volume           json.Number `json:"volume"`
	UnadjustedVolume json.Number `json:"unadjustedVolume"`
	Change           json.Number `json:"change"`
	ChangePercent    json.Number `json:"changePercent"`
	VWAP             json.Number `json:"vwap"`
	Label            string      `json:"label"`
	ChangeOverTime   json.Number `json:"changeOverTime"`
}

// encodeJSON writes the records as an array of objects.
func encodeJSON(w io.Writer, s series.Series) error {
	out := make([]jsonRecord, len(s.Records))
	for i, r := range s.Records {
		out[i] = jsonRecord{
			Date:             r.Date,
			Open:             json.Number(r.Open.String()),
			High:             json.Number(r.High.String()),
			Low:              json.Number(r.Low.String()),
			Close:            json.Number(r.Close.String()),
			AdjClose:         json.Number(r.AdjClose.String()),
			Volume:           json.Number(r.Volume.String()),
			UnadjustedVolume: json.Number(r.UnadjustedVolume.String()),
			Change:           json.Number(r.Change.String()),
			ChangePercent:    json.Number(r.ChangePercent.String()),
			VWAP:             json.Number(r.VWAP.String()),
			Label:            r.Label,
			ChangeOverTime:   json.Number(r.ChangeOverTime.String()),
		}
	}
	return json.NewEncoder(w).Encode(out)
}
