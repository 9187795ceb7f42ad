package main

import "stivaleos/kernel/kmain"

// stivale2StructPtr is patched by the rt0 code with the address of the
// stivale2 struct handed over by the bootloader.
var stivale2StructPtr uintptr

// main keeps kmain.Kmain reachable so the linker emits it into the kernel
// object. Reading the pointer from a global stops the call from being
// inlined away.
func main() {
	kmain.Kmain(stivale2StructPtr)
}
