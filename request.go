// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package apiclient

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/healthgrid/apiclient/message"
	"github.com/healthgrid/apiclient/response"
)

// Request is one composition-and-send cycle: compose info, hash it, compose
// the header around the hash, sign the frozen header bytes, assemble and
// dispatch. A Request is single-use; concurrent calls must each create their
// own. Transport-level retries inside the dispatcher re-send the assembled
// buffer as-is, so the signature computed here stays valid.
type Request struct {
	conn     *Connection
	call     Call
	identity message.Identity
	sent     atomic.Bool
}

// NewRequest creates a single-use request for the given call using the
// connection's identity.
func (c *Connection) NewRequest(call Call) *Request {
	return c.newRequest(call, c.Identity)
}

func (c *Connection) newRequest(call Call, id message.Identity) *Request {
	return &Request{conn: c, call: call, identity: id}
}

// Send runs the request cycle once. A second Send on the same Request fails.
func (r *Request) Send(ctx context.Context) (*response.Data, error) {
	if !r.sent.CompareAndSwap(false, true) {
		return nil, errors.New("request already sent: create a new request per call")
	}

	if err := r.conn.check(); err != nil {
		return nil, err
	}

	if r.identity == nil {
		return nil, errors.New("bad configuration: no identity")
	}

	client, logger, version := r.conn.runtime()

	envelope, err := r.compose(version)
	if err != nil {
		return nil, err
	}

	correlationID := r.conn.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	res, err := client.PostRequest(ctx, r.conn.ServiceURL, envelope, correlationID)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", r.call.Method, err)
	}

	data, err := response.ParseBody(res.Body, res.Header)
	if err != nil {
		return nil, fmt.Errorf("%s response unreadable: %w", r.call.Method, err)
	}

	logger.Debug("call completed",
		zap.String("method", r.call.Method),
		zap.Int("status", data.StatusCode),
		zap.String("correlation_id", correlationID),
		zap.String("response_id", data.ResponseID))

	return data, nil
}

// compose builds the envelope in the order the signing scheme demands:
// info first (its hash is embedded in the header), then the header, then the
// signature over the finalized header bytes.
func (r *Request) compose(version string) ([]byte, error) {
	params := message.Params{
		Method:         r.call.Method,
		MethodVersion:  r.call.MethodVersion,
		ParametersXML:  r.call.ParametersXML,
		RecordID:       r.call.RecordID,
		TargetPersonID: r.call.TargetPersonID,
		FinalXSL:       r.call.FinalXSL,
		CultureCode:    r.conn.CultureCode,
		TTLSeconds:     r.conn.TTLSeconds,
		ClientVersion:  version,
	}

	info, header, err := message.Compose(params, r.identity)
	if err != nil {
		return nil, fmt.Errorf("composing %s request: %w", r.call.Method, err)
	}

	authSection, err := r.identity.SignHeader(header)
	if err != nil {
		return nil, fmt.Errorf("signing %s request: %w", r.call.Method, err)
	}

	return message.Assemble(authSection, header, info), nil
}
