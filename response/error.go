// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package response

import (
	"fmt"
	"net"
)

// ServerContext is the verbose diagnostic block the service attaches to
// errors when configured to do so.
type ServerContext struct {
	ServerName    string
	ServerIPs     []net.IP
	ExceptionText string
}

// Error is a well-formed service-level failure: the service understood the
// request and rejected it. Callers are expected to branch on StatusCode;
// this is the ordinary failure mode, not a transport fault.
type Error struct {
	StatusCode int
	Message    string
	ErrorInfo  string
	Context    *ServerContext
}

func (o *Error) Error() string {
	return fmt.Sprintf("service returned status %d: %s", o.StatusCode, o.Message)
}

// MalformedResponseError indicates a response missing a required element or
// otherwise unreadable as protocol XML. It is never retried and is distinct
// from both transport failures and service-level errors.
type MalformedResponseError struct {
	Detail string
	Err    error
}

func (o *MalformedResponseError) Error() string {
	s := fmt.Sprintf("malformed response: %s", o.Detail)

	if o.Err != nil {
		s += ": " + o.Err.Error()
	}

	return s
}

func (o *MalformedResponseError) Unwrap() error {
	return o.Err
}
