// Package inmemdb implements the domain repositories in memory. Used by the HTTP tests.
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/metalearn/core/file"
	"github.com/trezcool/metalearn/core/progress"
	"github.com/trezcool/metalearn/core/user"
)

type (
	DB struct {
		user     *userTable
		progress *progressTable
		file     *fileTable
	}

	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
		order []string // insertion order
	}

	progressTable struct {
		mutex sync.RWMutex
		rows  []*progress.Record // insertion order
	}

	fileTable struct {
		mutex sync.RWMutex
		table map[string]*file.File
		order []string
	}
)

func Open() *DB {
	return &DB{
		user:     &userTable{table: make(map[string]*user.User)},
		progress: &progressTable{},
		file:     &fileTable{table: make(map[string]*file.File)},
	}
}

// PingContext always succeeds.
func (db *DB) PingContext(context.Context) error { return nil }
