// Package observe holds observed case counts and aligns them with a model's
// time axis.
//
// An observation [Set] stores day offsets relative to a fixed reference
// [Date]. A simulation places t=0 at a caller-chosen epoch date, so before
// overlaying the two the offsets are translated by the whole-day difference
// between the reference and the epoch:
//
//	set := observe.Sweden()               // reference 2020-03-01
//	pts := set.Align(observe.MustParseDate("2020-03-19"))
//	// a point at offset 0 is now at -18
//
// Alignment never interpolates or resamples; points keep their sparse,
// irregular spacing. Date arithmetic is calendar arithmetic in UTC.
package observe
