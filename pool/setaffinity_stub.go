//go:build !linux || tinygo

// setaffinity_stub.go
//
// Pinning is Linux-only; elsewhere workers run wherever the OS puts them.

package pool

func setAffinity(int) {}
