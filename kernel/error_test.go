package kernel

import "testing"

func TestKernelError(t *testing.T) {
	err := &Error{
		Module:  "stivale2",
		Message: "error message",
	}

	if err.Error() != err.Message {
		t.Fatalf("expected to err.Error() to return %q; got %q", err.Message, err.Error())
	}

	if exp, got := "[stivale2] error message", err.String(); got != exp {
		t.Fatalf("expected err.String() to return %q; got %q", exp, got)
	}
}
