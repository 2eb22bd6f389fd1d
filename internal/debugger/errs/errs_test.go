package errs

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAttachErrorWrapsCause(t *testing.T) {
	cause := errors.New("no such process")
	err := &AttachError{Cause: cause}
	if err.Error() != "attach failed: no such process" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to see through Unwrap")
	}
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := &TimeoutError{Operation: "thread backtrace", Budget: 30 * time.Second}
	want := "thread backtrace timed out after 30s"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestProcessRunningErrorDefaultsWithoutDetail(t *testing.T) {
	err := &ProcessRunningError{}
	if err.Error() == "" {
		t.Fatal("expected a non-empty default message")
	}
	detailed := &ProcessRunningError{Detail: "thread 1 running"}
	if detailed.Error() == err.Error() {
		t.Error("expected detailed message to differ from the default")
	}
}

func TestNewAdapterMissingErrorGuidesToCLIBackend(t *testing.T) {
	err := NewAdapterMissingError()
	if err.Guidance == "" {
		t.Fatal("expected non-empty guidance")
	}
	var target *AdapterMissingError
	if !errors.As(err, &target) {
		t.Error("expected errors.As to match *AdapterMissingError")
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	if errors.Is(ErrNotAttached, ErrDisposed) {
		t.Error("ErrNotAttached and ErrDisposed must be distinguishable")
	}
	wrapped := fmt.Errorf("wrapping: %w", ErrNotFound)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("expected wrapped sentinel to satisfy errors.Is")
	}
}
