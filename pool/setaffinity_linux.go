//go:build linux && !tinygo

// setaffinity_linux.go
//
// Linux-only binding for `sched_setaffinity(2)` that pins **this** OS
// thread to a single logical CPU.  Pre-computed one-word masks keep the
// call allocation-free; CPUs >= 64 and syscall errors (containers, cgroup
// limits) silently fall back to "no pin".

package pool

import (
	"syscall"
	"unsafe"
)

// Pre-computed one-word affinity masks for logical CPUs 0-63.
var cpuMasks = func() [64][1]uintptr {
	var m [64][1]uintptr
	for i := range m {
		m[i][0] = 1 << i
	}
	return m
}()

// setAffinity pins the current thread to `cpu` (0-based).  Out-of-range
// indices are ignored for portability.
func setAffinity(cpu int) {
	if cpu < 0 || cpu >= len(cpuMasks) {
		return
	}
	mask := &cpuMasks[cpu]
	_, _, _ = syscall.RawSyscall(
		syscall.SYS_SCHED_SETAFFINITY,
		0, // pid 0 → current thread
		uintptr(unsafe.Sizeof(mask[0])),
		uintptr(unsafe.Pointer(mask)),
	)
}
