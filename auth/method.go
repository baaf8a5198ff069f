// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package auth

import "fmt"

// Method is the enumeration of identity modes supported by the HealthGrid
// service. It implements the pflag.Value interface.
type Method string

const (
	MethodAnonymous Method = "anonymous"
	MethodSession   Method = "session"
	MethodBootstrap Method = "bootstrap"
)

// String representation of the Method
func (o *Method) String() string {
	return string(*o)
}

// Set the value of the Method
func (o *Method) Set(v string) error {
	switch v {
	case "none", "anonymous":
		*o = MethodAnonymous
	case "session":
		*o = MethodSession
	case "bootstrap":
		*o = MethodBootstrap
	default:
		return fmt.Errorf("unexpected Method %q", v)
	}

	return nil
}

// Type returns the string representing the type name (used by pflag).
func (o *Method) Type() string {
	return "Method"
}
