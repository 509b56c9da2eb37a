//go:build !unix

package platform

// DisableCoreDumps does nothing where there is no RLIMIT_CORE.
func DisableCoreDumps() error {
	return nil
}

func CoreDumpLimit() (uint64, error) {
	return 0, ErrUnsupported
}
