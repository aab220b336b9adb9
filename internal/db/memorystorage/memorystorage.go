// Package memorystorage is a process-local user storage. It shares the JSON
// store's data structures but never touches the filesystem.
package memorystorage

import (
	"github.com/patric-chuzhbe/journalapp/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.NewCache(),
		},
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}
