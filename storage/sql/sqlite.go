//go:build cgo
// +build cgo

package sql

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/dexidp/sso/storage"
)

// SQLite3 options for creating an SQL db.
type SQLite3 struct {
	// File is the path to the database file. Use ":memory:" for an ephemeral
	// database, the form the conformance suite runs against.
	File string `json:"file"`
}

// Open creates a storage.Driver backed by SQLite3.
func (s *SQLite3) Open(logger logrus.FieldLogger) (storage.Driver, error) {
	return s.open(logger)
}

func (s *SQLite3) open(logger logrus.FieldLogger) (*conn, error) {
	db, err := sql.Open("sqlite3", s.File)
	if err != nil {
		return nil, err
	}

	// Allow only one connection at a time; any other goroutine attempting
	// concurrent access waits.
	db.SetMaxOpenConns(1)
	errCheck := func(err error) bool {
		sqlErr, ok := err.(sqlite3.Error)
		if !ok {
			return false
		}
		return sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	c := &conn{db, flavorSQLite3, logger.WithField("driver", "sqlite3"), errCheck}
	if _, err := c.migrate(); err != nil {
		return nil, fmt.Errorf("failed to perform migrations: %v", err)
	}
	return c, nil
}
