package memory

import (
	"log/slog"
	"testing"

	"github.com/dexidp/sso/storage/conformance"
)

func TestMemoryConformance(t *testing.T) {
	conformance.Run(t, New(slog.Default()))
}
