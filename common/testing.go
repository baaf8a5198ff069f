// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package common

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"

	"go.uber.org/zap"
)

// NewTestingHTTPClient creates an HTTP test server (with a configurable request
// handler), an API Client and connects them together.  The API client and the
// server's shutdown switch are returned.
func NewTestingHTTPClient(handler http.Handler) (cli *Client, closerFn func()) {
	srv := httptest.NewServer(handler)

	cli = &Client{
		HTTPClient: http.Client{
			Transport: &http.Transport{
				DialContext: func(_ context.Context, network, _ string) (net.Conn, error) {
					return net.Dial(network, srv.Listener.Addr().String())
				},
			},
		},
		Logger:     zap.NewNop(),
		retryCount: DefaultRetryCount,
		retryDelay: 0,
	}

	closerFn = srv.Close

	return
}
