// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package common

import (
	"fmt"
	"net/http"

	"github.com/moogar0880/problems"
)

// ProblemError is an RFC7807 problem body returned by a gateway or proxy in
// front of the service, as opposed to a protocol-level XML error.
type ProblemError struct {
	problems.DefaultProblem
}

func (o *ProblemError) Error() string {
	return fmt.Sprintf("%d %s: %s", o.ProblemStatus(), o.ProblemTitle(), o.Detail)
}

// TransportError is a terminal HTTP-level failure: a non-500 error status,
// or a 500 that survived the whole retry budget.
type TransportError struct {
	StatusCode int
	Attempts   int
	ResponseID string
	Err        error
}

func (o *TransportError) Error() string {
	s := fmt.Sprintf("request failed with HTTP status %d after %d attempt(s)",
		o.StatusCode, o.Attempts)

	if o.ResponseID != "" {
		s += fmt.Sprintf(" (response id %s)", o.ResponseID)
	}

	if o.Err != nil {
		s += ": " + o.Err.Error()
	}

	return s
}

func (o *TransportError) Unwrap() error {
	return o.Err
}

// problemFromResponse decodes an RFC7807 body if the response carries one.
func problemFromResponse(res *http.Response) error {
	if res.Header.Get("Content-Type") != problems.ProblemMediaType {
		return nil
	}

	var prob ProblemError

	if err := DecodeJSONBody(res, &prob.DefaultProblem); err != nil {
		return fmt.Errorf("could not decode problem response: %w", err)
	}

	return &prob
}
