// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package common

import (
	"encoding/json"
	"net/http"
	"time"
)

// Default retry policy for server-side transient failures.
const (
	DefaultRetryCount = 2
	DefaultRetryDelay = 1 * time.Second
)

// HTTP headers used for cross-system request correlation.
const (
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderResponseID    = "X-Response-Id"
)

// Content type of every request envelope.
const RequestContentType = "text/xml; charset=utf-8"

func DecodeJSONBody(res *http.Response, j interface{}) error {
	defer res.Body.Close()

	return json.NewDecoder(res.Body).Decode(&j)
}
