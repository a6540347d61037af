// Package version provides the kvenv version strings.
package version

import (
	_ "embed"
	"runtime"
	"strings"
)

// You can override buildVersion at compile time by using:
//
//	go run -ldflags "-X github.com/kvenv/kvenv/version.buildVersion=abc" . --version
//
// Release binaries are always built with the buildVersion variable set.

//go:embed VERSION
var baseVersion string
var buildVersion string

func Version() string {
	return strings.TrimSpace(baseVersion)
}

func BuildVersion() string {
	if buildVersion == "" {
		return "x"
	}
	return buildVersion
}

// FullVersion is the version shown by --version.
func FullVersion() string {
	return Version() + "+" + BuildVersion()
}

// ApplicationID prefixes the User-Agent header of every Key Vault request.
// azcore truncates application IDs longer than 24 characters.
func ApplicationID() string {
	return "kvenv/" + Version()
}

// UserAgent describes the running build in full, including the platform.
func UserAgent() string {
	return "kvenv/" + Version() + "." + BuildVersion() + " (" + runtime.GOOS + "; " + runtime.GOARCH + ")"
}
