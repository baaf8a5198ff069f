// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

// Package session holds the authenticated-session model: the credential
// issued by the platform, the session state surrounding it, and the codec
// that persists that state as an opaque versioned token.
package session

// Credential is the bearer token and shared secret issued by the platform
// after a successful credential exchange. A Credential is immutable once
// issued: renewal replaces the whole value, never mutates it.
type Credential struct {
	Token        string `xml:"auth-token"`
	SharedSecret string `xml:"shared-secret"`
}

// Valid reports whether the credential can authenticate a request.
func (c Credential) Valid() bool {
	return c.Token != "" && c.SharedSecret != ""
}

// String redacts the credential. Key material must never reach logs.
func (c Credential) String() string {
	return "session.Credential{REDACTED}"
}
