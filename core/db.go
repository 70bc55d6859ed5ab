package core

import (
	"strings"
	"time"
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderBy builds an ORDER BY clause from the orderings whose field is in `allowed`
// ({api field: column}). Unknown fields are ignored; `fallback` is used when nothing remains.
func OrderBy(ordering []DBOrdering, allowed map[string]string, fallback string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		parts = append(parts, DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, ", ")
}

// Now returns the current time in UTC truncated to what postgres stores.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
