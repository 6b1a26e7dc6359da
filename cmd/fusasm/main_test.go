// cmd/fusasm/main_test.go
package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tamzrod/fusa-sm/internal/status"
)

func TestErrorCode(t *testing.T) {
	if got := errorCode(nil); got != 0 {
		t.Fatalf("errorCode(nil) = %d", got)
	}
	wrapped := fmt.Errorf("cycle: %w", status.Errorf(status.HardwareError, "probe", "bank offline"))
	if got := errorCode(wrapped); got != uint16(status.HardwareError) {
		t.Fatalf("errorCode(wrapped) = %d", got)
	}
	if got := errorCode(errors.New("plain")); got != 1 {
		t.Fatalf("errorCode(plain) = %d", got)
	}
}
