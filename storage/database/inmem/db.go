// Package inmemdb keeps every table in memory. It backs the API in development and the handler tests.
package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/academics"
	"github.com/trezcool/chuo/core/admission"
	"github.com/trezcool/chuo/core/content"
	"github.com/trezcool/chuo/core/library"
	"github.com/trezcool/chuo/core/mailbox"
	"github.com/trezcool/chuo/core/material"
	"github.com/trezcool/chuo/core/messaging"
	"github.com/trezcool/chuo/core/site"
	"github.com/trezcool/chuo/core/user"
)

// DB is guarded by a single lock so deletes can cascade across tables.
type DB struct {
	sync.RWMutex

	users        map[string]user.User
	faculties    map[string]academics.Faculty
	departments  map[string]academics.Department
	courses      map[string]academics.Course
	applications map[string]admission.Application
	appDocuments map[string]admission.Document
	accounts     map[string]mailbox.EmailAccount
	materials    map[string]material.Material
	books        map[string]library.Book
	channels     map[string]messaging.Channel
	messages     []messaging.Message
	jobs         map[int64]content.Job
	documents    map[string]site.Document

	messageSeq int64
	jobSeq     int64
}

func Open() *DB {
	db := new(DB)
	db.init()
	return db
}

func (db *DB) init() {
	db.users = make(map[string]user.User)
	db.faculties = make(map[string]academics.Faculty)
	db.departments = make(map[string]academics.Department)
	db.courses = make(map[string]academics.Course)
	db.applications = make(map[string]admission.Application)
	db.appDocuments = make(map[string]admission.Document)
	db.accounts = make(map[string]mailbox.EmailAccount)
	db.materials = make(map[string]material.Material)
	db.books = make(map[string]library.Book)
	db.channels = make(map[string]messaging.Channel)
	db.messages = nil
	db.jobs = make(map[int64]content.Job)
	db.documents = make(map[string]site.Document)
}

// Reset empties every table. Sequences keep counting.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	db.init()
}

func values[K comparable, V any](m map[K]V) []V {
	vals := make([]V, 0, len(m))
	for _, v := range m {
		vals = append(vals, v)
	}
	return vals
}

// field extracts the value a row is ordered by: a string, an int, an int64, a bool or a time.Time.
type field[T any] func(T) interface{}

// sortRows orders rows by the known fields of ordering, falling back to `fallback`.
func sortRows[T any](rows []T, ordering []core.DBOrdering, fields map[string]field[T], fallback ...core.DBOrdering) {
	ords := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if _, ok := fields[ord.Field]; ok {
			ords = append(ords, ord)
		}
	}
	if len(ords) == 0 {
		ords = fallback
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ords {
			get := fields[ord.Field]
			c := compare(get(rows[i]), get(rows[j]))
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func compare(a, b interface{}) int {
	switch x := a.(type) {
	case string:
		return strings.Compare(strings.ToLower(x), strings.ToLower(b.(string)))
	case int:
		return x - b.(int)
	case int64:
		y := b.(int64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case time.Time:
		y := b.(time.Time)
		switch {
		case x.Before(y):
			return -1
		case x.After(y):
			return 1
		}
	}
	return 0
}

// containsFold reports whether any of vals contains substr, ignoring case.
func containsFold(substr string, vals ...string) bool {
	substr = strings.ToLower(substr)
	for _, v := range vals {
		if strings.Contains(strings.ToLower(v), substr) {
			return true
		}
	}
	return false
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from.UTC()) {
		return false
	}
	if !to.IsZero() && t.After(to.UTC()) {
		return false
	}
	return true
}
