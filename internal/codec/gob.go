package codec

import (
	"encoding/gob"
	"fmt"
	"io"

	"stockdownloader/internal/series"
)

// encodeGob dumps the whole series value, bounds included.
func encodeGob(w io.Writer, s series.Series) error {
	if err := gob.NewEncoder(w).Encode(s); err != nil {
		return fmt.Errorf("encoding gob: %w", err)
	}
	return nil
}

// DecodePickle reads back a series written in the Pickle format.
func DecodePickle(r io.Reader) (series.Series, error) {
	var s series.Series
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return series.Series{}, fmt.Errorf("decoding gob: %w", err)
	}
	return s, nil
}
