// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

// Package common holds the HTTP dispatcher shared by all HealthGrid calls:
// it posts a composed request buffer, applies the retry policy for
// server-side transient failures, handles request/response compression and
// surfaces the correlation headers used for diagnostics.
package common

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client holds configuration data associated with the HTTP(s) session.
type Client struct {
	HTTPClient http.Client
	Logger     *zap.Logger

	compression string
	retryCount  int
	retryDelay  time.Duration
}

// NewClient instantiates a new Client with the default retry policy and no
// request compression.
func NewClient() *Client {
	return &Client{
		HTTPClient: http.Client{
			Timeout: 30 * time.Second,
		},
		Logger:     zap.NewNop(),
		retryCount: DefaultRetryCount,
		retryDelay: DefaultRetryDelay,
	}
}

// SetCompression selects the request body compression method. Only gzip and
// deflate are understood by the service; anything else is rejected here,
// before any network activity.
func (c *Client) SetCompression(method string) error {
	switch method {
	case "", "gzip", "deflate":
		c.compression = method
		return nil
	default:
		return fmt.Errorf("unsupported compression method %q", method)
	}
}

// SetRetryPolicy configures how many times a 500 response is retried and the
// fixed delay between attempts.
func (c *Client) SetRetryPolicy(count int, delay time.Duration) error {
	if count < 0 {
		return errors.New("negative retry count")
	}

	if delay < 0 {
		return errors.New("negative retry delay")
	}

	c.retryCount = count
	c.retryDelay = delay

	return nil
}

// Response is a successful HTTP exchange. Body is transparently decompressed
// and must be closed by the caller.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	ResponseID string
}

// PostRequest sends the composed request buffer to uri. Only HTTP 500 is
// treated as transient and retried, re-sending the identical bytes so an
// embedded signature stays valid; every other non-success status fails
// immediately. Cancelling ctx aborts the in-flight call and suppresses any
// further retry. The service's response id is captured even when the call
// ultimately fails.
func (c *Client) PostRequest(ctx context.Context, uri string, body []byte, correlationID string) (*Response, error) {
	payload, err := compressBody(c.compression, body)
	if err != nil {
		return nil, fmt.Errorf("compressing request body: %w", err)
	}

	attempts := c.retryCount + 1

	for attempt := 1; ; attempt++ {
		res, err := c.post(ctx, uri, payload, correlationID)
		if err != nil {
			return nil, fmt.Errorf("POST %q: %w", uri, err)
		}

		// Capture the response id before any branching so diagnostics
		// survive failure paths.
		responseID := res.Header.Get(HeaderResponseID)

		switch {
		case res.StatusCode == http.StatusOK:
			decompressed, err := decompressBody(res)
			if err != nil {
				res.Body.Close()
				return nil, err
			}

			return &Response{
				StatusCode: res.StatusCode,
				Header:     res.Header,
				Body:       decompressed,
				ResponseID: responseID,
			}, nil

		case res.StatusCode == http.StatusInternalServerError && attempt < attempts:
			res.Body.Close()

			c.Logger.Warn("transient server failure, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.String("response_id", responseID))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}

		default:
			inner := problemFromResponse(res)
			if inner == nil {
				res.Body.Close()
			}

			return nil, &TransportError{
				StatusCode: res.StatusCode,
				Attempts:   attempt,
				ResponseID: responseID,
				Err:        inner,
			}
		}
	}
}

func (c *Client) post(ctx context.Context, uri string, payload []byte, correlationID string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", uri, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}

	req.Header.Set("Content-Type", RequestContentType)
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	if c.compression != "" {
		req.Header.Set("Content-Encoding", c.compression)
	}

	if correlationID != "" {
		req.Header.Set(HeaderCorrelationID, correlationID)
	}

	c.Logger.Debug("dispatching request",
		zap.String("uri", uri),
		zap.Int("body_bytes", len(payload)),
		zap.String("correlation_id", correlationID))

	return c.HTTPClient.Do(req)
}

func compressBody(method string, body []byte) ([]byte, error) {
	switch method {
	case "":
		return body, nil

	case "gzip":
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case "deflate":
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported compression method %q", method)
	}
}

// decompressBody wraps the response body so the caller always reads plain
// bytes, whatever Content-Encoding the service chose.
func decompressBody(res *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(res.Header.Get("Content-Encoding")) {
	case "":
		return res.Body, nil

	case "gzip":
		zr, err := gzip.NewReader(res.Body)
		if err != nil {
			return nil, fmt.Errorf("reading gzip response: %w", err)
		}
		return &decompressedBody{r: zr, underlying: res.Body}, nil

	case "deflate":
		return &decompressedBody{
			r:          flate.NewReader(res.Body),
			underlying: res.Body,
		}, nil

	default:
		return nil, fmt.Errorf("unexpected response Content-Encoding %q",
			res.Header.Get("Content-Encoding"))
	}
}

type decompressedBody struct {
	r          io.ReadCloser
	underlying io.Closer
}

func (o *decompressedBody) Read(p []byte) (int, error) {
	return o.r.Read(p)
}

func (o *decompressedBody) Close() error {
	err := o.r.Close()

	if err2 := o.underlying.Close(); err == nil {
		err = err2
	}

	return err
}
