package testing

import (
	"testing"

	"github.com/arloliu/elector/internal/logger"
	"github.com/arloliu/elector/types"
)

// NewTestLogger creates a logger that writes to the test log.
//
// Messages logged after the test finished are dropped, so background goroutines
// that outlive the test do not panic.
func NewTestLogger(t testing.TB) types.Logger {
	return logger.NewTest(t)
}
