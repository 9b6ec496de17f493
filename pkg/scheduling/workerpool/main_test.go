package workerpool

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in this package.
// Every test must join its workers before returning.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
