// Package account holds the account value type and its on-disk store.
// An account carries exactly the fields the sync engine needs to
// authenticate: server URL, email, token, and (in memory only) the
// password. This is a leaf package imported by the CLI and the sync layer.
package account

import "strings"

// Account identifies one connection to a server. Identity is
// (ServerURL, Email); the token is mutable and refreshed by the session.
// The password is never persisted by this package.
type Account struct {
	ServerURL string `json:"server"`
	Email     string `json:"email"`
	Token     string `json:"token"`
	Password  string `json:"-"`
}

// Equal reports whether two accounts denote the same connection.
// Token and password are not part of identity.
func (a Account) Equal(other Account) bool {
	return a.ServerURL == other.ServerURL && a.Email == other.Email
}

// ServerHost returns the host[:port] portion of the server URL.
func (a Account) ServerHost() string {
	s := a.ServerURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}

	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}

	return s
}

// IsHTTPS reports whether the server URL uses TLS.
func (a Account) IsHTTPS() bool {
	return strings.HasPrefix(a.ServerURL, "https://")
}
