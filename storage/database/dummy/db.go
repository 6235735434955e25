package dummydb

import (
	"sync"

	"github.com/trezcool/attendr/core/attendance"
)

type (
	DB struct {
		upload *uploadTable
	}

	uploadTable struct {
		sync.RWMutex
		table map[string]*attendance.Upload
		seq   map[string]int // insertion order, breaks created_at ties
		next  int
	}
)

func Open() (*DB, error) {
	db := &DB{
		upload: &uploadTable{
			table: make(map[string]*attendance.Upload),
			seq:   make(map[string]int),
		},
	}
	return db, nil
}
