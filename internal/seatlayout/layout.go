// Package seatlayout enumerates the seat labels of a cabin: numbered rows, lettered
// columns, "1A" first.
package seatlayout

import (
	"fmt"
	"sort"
	"strconv"
)

// DefaultColumns is the six abreast single-aisle configuration.
var DefaultColumns = []string{"A", "B", "C", "D", "E", "F"}

type Layout struct {
	labels []string
	index  map[string]int
}

// New builds the layout for totalSeats seats. Rows are filled column by column, so a
// total not divisible by the number of columns ends with a partial row. With no
// columns given, DefaultColumns is used.
func New(totalSeats int, columns ...string) (*Layout, error) {
	if totalSeats <= 0 {
		return nil, fmt.Errorf("total seats must be positive, got %d", totalSeats)
	}
	if len(columns) == 0 {
		columns = DefaultColumns
	}

	l := &Layout{
		labels: make([]string, 0, totalSeats),
		index:  make(map[string]int, totalSeats),
	}
	for row := 1; len(l.labels) < totalSeats; row++ {
		prefix := strconv.Itoa(row)
		for _, col := range columns {
			if len(l.labels) == totalSeats {
				break
			}
			label := prefix + col
			if _, dup := l.index[label]; dup {
				return nil, fmt.Errorf("column %q produces duplicate label %q", col, label)
			}
			l.index[label] = len(l.labels)
			l.labels = append(l.labels, label)
		}
	}
	return l, nil
}

func (l *Layout) Size() int { return len(l.labels) }

func (l *Layout) Contains(label string) bool {
	_, ok := l.index[label]
	return ok
}

// Invalid returns the requested labels that are not part of the layout, plus any label
// requested more than once, in request order and without repeats.
func (l *Layout) Invalid(requested []string) []string {
	var bad []string
	seen := make(map[string]bool, len(requested))
	reported := make(map[string]bool)
	for _, label := range requested {
		if (!l.Contains(label) || seen[label]) && !reported[label] {
			bad = append(bad, label)
			reported[label] = true
		}
		seen[label] = true
	}
	return bad
}

// Available returns the labels of the layout not present in booked.
func (l *Layout) Available(booked []string) []string {
	taken := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		taken[b] = struct{}{}
	}
	free := make([]string, 0, len(l.labels))
	for _, label := range l.labels {
		if _, ok := taken[label]; !ok {
			free = append(free, label)
		}
	}
	return free
}

// Ordered returns labels sorted in canonical seat order. Labels outside the layout
// keep their relative order at the end.
func (l *Layout) Ordered(labels []string) []string {
	out := make([]string, len(labels))
	copy(out, labels)
	rank := func(label string) int {
		if i, ok := l.index[label]; ok {
			return i
		}
		return len(l.labels)
	}
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}
