package version

var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
)
