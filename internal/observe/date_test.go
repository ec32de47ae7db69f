package observe

import (
	"testing"
	"time"
)

func TestDaysSince(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2020-03-19", "2020-03-01", 18},
		{"2020-03-01", "2020-03-19", -18},
		{"2020-03-01", "2020-03-01", 0},
		{"2020-03-01", "2020-02-28", 2}, // leap year
		{"2021-03-01", "2021-02-28", 1},
		{"2021-01-01", "2020-12-31", 1},
		// spans the European DST switch on 2020-03-29
		{"2020-04-02", "2020-03-28", 5},
		// beyond the range of time.Duration
		{"2020-03-01", "1600-03-01", 153402},
		{"1600-03-01", "2020-03-01", -153402},
		{"2400-03-01", "2000-03-01", 146097},
	}

	for _, tt := range tests {
		got := MustParseDate(tt.a).DaysSince(MustParseDate(tt.b))
		if got != tt.want {
			t.Errorf("%s - %s = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDateOfIgnoresZone(t *testing.T) {
	stockholm := time.FixedZone("CEST", 2*60*60)
	late := time.Date(2020, 3, 29, 23, 30, 0, 0, stockholm)

	if got := DateOf(late); got != NewDate(2020, 3, 29) {
		t.Errorf("DateOf = %v, want 2020-03-29", got)
	}
}

func TestAddDaysNormalises(t *testing.T) {
	d := NewDate(2020, 3, 1).AddDays(31)
	if d.String() != "2020-04-01" {
		t.Errorf("AddDays(31) = %s, want 2020-04-01", d)
	}
	if back := d.AddDays(-31); back != NewDate(2020, 3, 1) {
		t.Errorf("AddDays(-31) = %s", back)
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2020-13-01"); err == nil {
		t.Error("expected error for month 13")
	}
	if _, err := ParseDate("19/03/2020"); err == nil {
		t.Error("expected error for wrong layout")
	}

	var d Date
	if err := d.UnmarshalText([]byte("2020-04-02")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	b, _ := d.MarshalText()
	if string(b) != "2020-04-02" {
		t.Errorf("MarshalText = %s", b)
	}
}
