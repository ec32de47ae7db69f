package observe

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"sync"
)

//go:embed data/sweden.csv
var swedenCSV []byte

// Confirmed COVID-19 cases in Sweden, March and early April 2020, as
// published by Folkhälsomyndigheten. Offsets count from 2020-03-01.
var Sweden = sync.OnceValue(func() Set {
	s, err := ReadCSV(bytes.NewReader(swedenCSV), "sweden", NewDate(2020, 3, 1))
	if err != nil {
		panic(fmt.Sprintf("observe: embedded sweden dataset: %v", err))
	}
	return s
})

var builtin = map[string]func() Set{
	"sweden": Sweden,
}

// Datasets lists the built-in observation sets.
func Datasets() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dataset returns a built-in set by name, or reads a CSV file when name is a
// path. reference only applies to files.
func Dataset(name string, reference Date) (Set, error) {
	if fn, ok := builtin[name]; ok {
		return fn(), nil
	}

	f, err := os.Open(name)
	if err != nil {
		return Set{}, fmt.Errorf("unknown dataset %q: %w", name, err)
	}
	defer f.Close()

	return ReadCSV(f, name, reference)
}
