// Package version holds the build version of the proxy.
package version

import (
	"net/http"
	"runtime/debug"
)

// Name is the proxy name reported to clients and backends.
const Name = "Velocity"

// Set with -ldflags "-X github.com/dualspiral/velocity/pkg/version.version=v1.2.3".
var version string

// String is the ldflags version, else the main module version of the
// build info, else "unknown".
func String() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return "unknown"
}

// UserAgent is sent with outgoing http requests, e.g. "Velocity/v1.2.3".
func UserAgent() string { return Name + "/" + String() }

// UserAgentHeader is a header set carrying UserAgent.
func UserAgentHeader() http.Header {
	return http.Header{"User-Agent": []string{UserAgent()}}
}
