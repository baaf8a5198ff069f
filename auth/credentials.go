// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"sync/atomic"

	"github.com/healthgrid/apiclient/session"
)

// CredentialSource yields the session credential used to authenticate a
// request. Reads may happen from many concurrent requests; implementations
// must return a consistent whole value, never a partially-updated one.
type CredentialSource interface {
	Credential() session.Credential
}

// StaticCredential is a CredentialSource over a fixed credential.
type StaticCredential struct {
	cred session.Credential
}

// NewStaticCredential wraps a fixed credential.
func NewStaticCredential(cred session.Credential) *StaticCredential {
	return &StaticCredential{cred: cred}
}

// Credential returns the wrapped credential.
func (o *StaticCredential) Credential() session.Credential {
	return o.cred
}

// RenewableCredential is a CredentialSource whose credential is swapped
// wholesale on renewal. Concurrent readers observe either the old or the new
// value, never a mix.
type RenewableCredential struct {
	v atomic.Value
}

// NewRenewableCredential creates a RenewableCredential holding an initial
// (possibly zero) credential.
func NewRenewableCredential(initial session.Credential) *RenewableCredential {
	o := &RenewableCredential{}
	o.v.Store(initial)
	return o
}

// Credential returns the current credential.
func (o *RenewableCredential) Credential() session.Credential {
	return o.v.Load().(session.Credential)
}

// Renew atomically replaces the credential.
func (o *RenewableCredential) Renew(cred session.Credential) {
	o.v.Store(cred)
}
