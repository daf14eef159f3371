// debug.go — cold-path diagnostics
//
// Logs infrequent error paths without pulling a logging framework into a
// benchmarking binary.  Plain concatenation, one write straight to stderr.
// Never invoke from scenario blocks — failure diagnostics and setup paths
// only.

package debug

import "os"

// DropError writes a prefixed error line to stderr; with a nil error only
// the prefix is written.
func DropError(prefix string, err error) {
	if err != nil {
		os.Stderr.WriteString(prefix + ": " + err.Error() + "\n")
		return
	}
	os.Stderr.WriteString(prefix + "\n")
}

// DropMessage writes a prefixed diagnostic line to stderr.
func DropMessage(prefix, message string) {
	os.Stderr.WriteString(prefix + ": " + message + "\n")
}
