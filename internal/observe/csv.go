package observe

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ReadCSV parses "date,count" rows. A header row is optional. When reference
// is zero the earliest date becomes the reference.
func ReadCSV(r io.Reader, name string, reference Date) (Set, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	type row struct {
		date  Date
		count float64
	}
	var rows []row

	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Set{}, fmt.Errorf("read observations: %w", err)
		}

		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "date") {
			continue
		}

		d, err := ParseDate(strings.TrimSpace(record[0]))
		if err != nil {
			return Set{}, fmt.Errorf("observations line %d: %w", line, err)
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return Set{}, fmt.Errorf("observations line %d: parse count: %w", line, err)
		}
		if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return Set{}, fmt.Errorf("observations line %d: count must be non-negative, got %v", line, c)
		}
		rows = append(rows, row{date: d, count: c})
	}

	if reference.IsZero() {
		for i, rw := range rows {
			if i == 0 || rw.date.Before(reference) {
				reference = rw.date
			}
		}
	}

	points := make([]Point, len(rows))
	for i, rw := range rows {
		points[i] = Point{Day: rw.date.DaysSince(reference), Count: rw.count}
	}
	return NewSet(name, reference, points), nil
}

// WriteCSV writes s as "date,count" rows.
func WriteCSV(w io.Writer, s Set) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "count"}); err != nil {
		return err
	}
	for _, p := range s.points {
		row := []string{s.DateOf(p).String(), strconv.FormatFloat(p.Count, 'f', -1, 64)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
