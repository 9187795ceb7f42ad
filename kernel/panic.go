package kernel

import (
	"fmt"
	"io"
)

var (
	// cpuHaltFn is mocked by tests. Without the rt0 code there is no way to
	// halt the CPU so the calling goroutine is parked forever.
	cpuHaltFn = func() { select {} }

	panicOut io.Writer = io.Discard

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}
)

// SetPanicOutput sets the writer that receives the panic banner.
func SetPanicOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	panicOut = w
}

// Panic outputs the supplied error (if not nil) and halts the CPU. Calls to
// Panic never return.
func Panic(e any) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		panicString(t)
		return
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	fmt.Fprint(panicOut, "\n-----------------------------------\n")
	if err != nil {
		fmt.Fprintf(panicOut, "[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	fmt.Fprint(panicOut, "*** kernel panic: system halted ***")
	fmt.Fprint(panicOut, "\n-----------------------------------\n")

	cpuHaltFn()
}

func panicString(msg string) {
	errRuntimePanic.Message = msg
	Panic(errRuntimePanic)
}
