package version

// Build identity, stamped via -ldflags. Untouched builds report "dev".
var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String returns the combined version identifier reported by the API
// and the -version flag.
func String() string {
	return Version + " (" + GitSHA + ", built " + BuildTime + ")"
}
