//go:build unix

package platform

import "golang.org/x/sys/unix"

// DisableCoreDumps sets RLIMIT_CORE to zero so a crash cannot write the
// unlocked key material to disk.
func DisableCoreDumps() error {
	return unix.Setrlimit(unix.RLIMIT_CORE, &unix.Rlimit{Cur: 0, Max: 0})
}

// CoreDumpLimit reports the current soft RLIMIT_CORE.
func CoreDumpLimit() (uint64, error) {
	var r unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_CORE, &r); err != nil {
		return 0, err
	}
	return uint64(r.Cur), nil
}
