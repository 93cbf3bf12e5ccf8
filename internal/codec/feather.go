package codec

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"stockdownloader/internal/series"
)

// featherSchema mirrors columns: text columns are utf8, numeric ones float64.
var featherSchema = func() *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		typ := arrow.DataType(arrow.PrimitiveTypes.Float64)
		if c.text != nil {
			typ = arrow.BinaryTypes.String
		}
		fields[i] = arrow.Field{Name: c.name, Type: typ}
	}
	return arrow.NewSchema(fields, nil)
}()

// encodeFeather writes a Feather v2 file, which is the Arrow IPC file format.
func encodeFeather(w io.Writer, s series.Series) error {
	mem := memory.NewGoAllocator()
	b := array.NewRecordBuilder(mem, featherSchema)
	defer b.Release()

	for _, r := range s.Records {
		for i, c := range columns {
			if c.text != nil {
				b.Field(i).(*array.StringBuilder).Append(c.text(r))
				continue
			}
			b.Field(i).(*array.Float64Builder).Append(c.num(r).InexactFloat64())
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(featherSchema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("creating feather writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("writing feather record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("closing feather writer: %w", err)
	}
	return nil
}
