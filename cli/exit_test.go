package cli

import (
	"errors"
	"testing"
)

func TestExitError(t *testing.T) {
	err := exitError(exitValidation, "bad value %q", "x")
	if err.Code != exitValidation {
		t.Fatalf("Code = %d, want %d", err.Code, exitValidation)
	}
	if err.Error() != `bad value "x"` {
		t.Fatalf("Error() = %q", err.Error())
	}

	var exitErr *ExitError
	if !errors.As(error(err), &exitErr) {
		t.Fatal("errors.As failed to unwrap ExitError")
	}
}
