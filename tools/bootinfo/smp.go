package main

import (
	"errors"
	"fmt"
	"sync/atomic"

	"stivaleos/stivale2"
)

var (
	errNoSMP        = errors.New("image has no SMP tag")
	errBootstrapCPU = errors.New("the bootstrap processor is already running")
)

// startCPU fills in the SMP record of cpu. The goto address is written last
// since application processors start executing as soon as it changes.
func startCPU(info *stivale2.Info, cpu int, stack, gotoAddr, arg uint64) error {
	tag, err := info.SMPMut()
	if err != nil {
		return err
	}

	if tag == nil {
		return errNoSMP
	}

	cpus := tag.CPUs()
	if cpu < 0 || cpu >= len(cpus) {
		return fmt.Errorf("cpu %d: index out of range [0, %d)", cpu, len(cpus))
	}

	rec := &cpus[cpu]
	if rec.LAPICID == tag.BSPLAPICID {
		return fmt.Errorf("cpu %d: %w", cpu, errBootstrapCPU)
	}

	rec.TargetStack = stack
	rec.ExtraArgument = arg
	atomic.StoreUint64(&rec.GotoAddress, gotoAddr)

	logger.Info().
		Int("cpu", cpu).
		Uint32("lapic_id", rec.LAPICID).
		Uint64("goto", gotoAddr).
		Msg("updated SMP record")

	return nil
}
