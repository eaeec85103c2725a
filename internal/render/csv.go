package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/polar-layers/internal/domain"
)

// CSVHeader is the column layout of WriteCSV.
var CSVHeader = []string{"x", "y", "value", "missing", "fill"}

// WriteCSV writes the primary data drawable of layer, one row per cell.
// Missing values are left blank.
func WriteCSV(w io.Writer, layer domain.StyledMapLayer) error {
	data, ok := layer.PrimaryData()
	if !ok {
		return fmt.Errorf("export %s: no data drawable: %w", layer.Dataset, domain.ErrLayerUnavailable)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range data.Cells {
		value := ""
		if !c.Missing {
			value = strconv.FormatFloat(c.Value, 'g', -1, 64)
		}
		rec := []string{
			strconv.FormatFloat(c.X, 'f', 3, 64),
			strconv.FormatFloat(c.Y, 'f', 3, 64),
			value,
			strconv.FormatBool(c.Missing),
			c.Fill.Hex(),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
