// Package validation contains format checks for config values and client input.
package validation

import (
	"net"
	"regexp"
)

// ValidHostPort fails unless hostAndPort splits into a host and a port.
func ValidHostPort(hostAndPort string) error {
	_, _, err := net.SplitHostPort(hostAndPort)
	return err
}

// Server names follow the rules of Kubernetes qualified names.
const (
	QualifiedNameMaxLength = 63
	QualifiedNameErrMsg    = "must be alphanumeric, '-', '_' or '.' " +
		"and start and end with an alphanumeric character"
)

var (
	serverNameRegexp = regexp.MustCompile(`^[A-Za-z0-9]([-A-Za-z0-9_.]*[A-Za-z0-9])?$`)
	usernameRegexp   = regexp.MustCompile(`^[A-Za-z0-9_]{2,16}$`)
)

// ValidServerName reports whether s may name a backend server.
func ValidServerName(s string) bool {
	return len(s) <= QualifiedNameMaxLength && serverNameRegexp.MatchString(s)
}

// MaxUsernameLength is the longest name a vanilla client logs in with.
const MaxUsernameLength = 16

// ValidUsername reports whether name is a legal player name.
func ValidUsername(name string) bool { return usernameRegexp.MatchString(name) }
