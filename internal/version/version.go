package version

import "fmt"

// Name is the program name used in banners and the user agent.
const Name = "cattlelens"

// Version, Commit and BuildDate are set at build time, e.g.
// go build -ldflags "-X github.com/oukeidos/cattlelens/internal/version.Version=0.2.0"
var (
	Version   = "0.1.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info returns a multi-line version string for CLI output.
func Info() string {
	return fmt.Sprintf("%s %s\ncommit: %s\nbuild: %s", Name, Version, Commit, BuildDate)
}

// Fields is Info as key/value pairs for JSON endpoints.
func Fields() map[string]string {
	return map[string]string{
		"name":       Name,
		"version":    Version,
		"commit":     Commit,
		"build_date": BuildDate,
	}
}
