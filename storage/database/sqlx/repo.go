// Package sqlxrepos implements the domain repositories on top of jmoiron/sqlx.
// Queries are written with "?" placeholders and rebound to the driver's bindvar.
package sqlxrepos

import (
	"github.com/trezcool/metalearn/core"
)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) rebind(query string) string {
	return repo.exec.Rebind(query)
}
