package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/san-kum/episim/internal/experiment"
)

// WriteCSV writes one row per sample: t, the calendar date when the outcome
// has an epoch, then one column per compartment.
func WriteCSV(w io.Writer, out *experiment.Outcome) error {
	res := out.Result
	dated := !out.Epoch.IsZero()

	cw := csv.NewWriter(w)
	header := []string{"t"}
	if dated {
		header = append(header, "date")
	}
	header = append(header, res.Compartments...)
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, 0, len(header))
	for i, t := range res.Times {
		row = append(row[:0], strconv.FormatFloat(t, 'f', -1, 64))
		if dated {
			row = append(row, out.DateAt(t).String())
		}
		for _, v := range res.States[i] {
			row = append(row, strconv.FormatFloat(v, 'f', 4, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
