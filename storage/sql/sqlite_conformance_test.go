//go:build cgo
// +build cgo

package sql

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/dexidp/sso/storage/conformance"
)

func TestSQLite3Conformance(t *testing.T) {
	s := &SQLite3{File: ":memory:"}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	c, err := s.open(logger)
	if err != nil {
		t.Fatalf("open sqlite3: %v", err)
	}
	defer c.Close()

	conformance.Run(t, c)
}
