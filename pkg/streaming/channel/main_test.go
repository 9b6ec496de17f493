package channel

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in this package.
// This catches waiters left parked after cancellation.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
