package kernel

import (
	"bytes"
	"errors"
	"testing"
)

func TestPanic(t *testing.T) {
	origHaltFn := cpuHaltFn
	defer func() {
		cpuHaltFn = origHaltFn
		SetPanicOutput(nil)
	}()

	var cpuHaltCalled bool
	cpuHaltFn = func() {
		cpuHaltCalled = true
	}

	specs := []struct {
		input any
		exp   string
	}{
		{
			&Error{Module: "test", Message: "panic test"},
			"\n-----------------------------------\n[test] unrecoverable error: panic test\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
		{
			"runtime failure",
			"\n-----------------------------------\n[rt] unrecoverable error: runtime failure\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
		{
			errors.New("go error"),
			"\n-----------------------------------\n[rt] unrecoverable error: go error\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
		{
			nil,
			"\n-----------------------------------\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
	}

	for specIndex, spec := range specs {
		var buf bytes.Buffer
		SetPanicOutput(&buf)
		cpuHaltCalled = false

		Panic(spec.input)

		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected to get:\n%q\ngot:\n%q", specIndex, spec.exp, got)
		}

		if !cpuHaltCalled {
			t.Errorf("[spec %d] expected cpuHaltFn to be called by Panic", specIndex)
		}
	}
}
