// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

// Package response reads HealthGrid response envelopes. Parsing is
// streaming: the status code is read first, and on success the info subtree
// is exposed as a cursor rather than materialized eagerly, so large record
// payloads are decoded only as far as the caller asks.
package response

import (
	"encoding/xml"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/healthgrid/apiclient/common"
)

// ErrErrorResponse is returned when the info subtree is requested from a
// response that carries a service error. Branch on Ok() first.
var ErrErrorResponse = errors.New("response carries a service error, no info available")

// ErrNoInfo is returned when a successful response has no info subtree.
var ErrNoInfo = errors.New("response has no info subtree")

// Data is a parsed response envelope.
type Data struct {
	StatusCode int
	Error      *Error
	Headers    http.Header
	ResponseID string

	dec       *xml.Decoder
	infoStart xml.StartElement
	hasInfo   bool
	body      io.Closer
}

// Ok reports whether the service accepted the request.
func (o *Data) Ok() bool {
	return o.StatusCode == StatusOK && o.Error == nil
}

// InfoCursor exposes the info subtree as a navigable cursor: the decoder is
// positioned at the info start element, which is returned alongside it.
func (o *Data) InfoCursor() (*xml.Decoder, *xml.StartElement, error) {
	if o.Error != nil {
		return nil, nil, ErrErrorResponse
	}

	if !o.hasInfo {
		return nil, nil, ErrNoInfo
	}

	return o.dec, &o.infoStart, nil
}

// DecodeInfo unmarshals the whole info subtree into v. The cursor is
// consumed; a second call returns ErrNoInfo.
func (o *Data) DecodeInfo(v interface{}) error {
	dec, start, err := o.InfoCursor()
	if err != nil {
		return err
	}

	o.hasInfo = false

	return dec.DecodeElement(v, start)
}

// Close releases the underlying response body, if any.
func (o *Data) Close() error {
	if o.body == nil {
		return nil
	}

	return o.body.Close()
}

// Parse reads a response envelope from r. The code element is required and
// read first; on success the info subtree is left unread behind the cursor,
// on failure the structured error block is fully parsed.
func Parse(r io.Reader, headers http.Header) (*Data, error) {
	dec := xml.NewDecoder(r)

	root, err := nextStart(dec)
	if err != nil || root.Name.Local != "response" {
		return nil, &MalformedResponseError{Detail: "missing response root element", Err: err}
	}

	se, err := nextStart(dec)
	if err != nil || se.Name.Local != "code" {
		return nil, &MalformedResponseError{Detail: "missing code element", Err: err}
	}

	var code int
	if err := dec.DecodeElement(&code, &se); err != nil {
		return nil, &MalformedResponseError{Detail: "unreadable code element", Err: err}
	}

	data := &Data{
		StatusCode: code,
		Headers:    headers,
		ResponseID: headers.Get(common.HeaderResponseID),
	}

	if code == StatusOK {
		se, err := nextStart(dec)
		if err == nil && se.Name.Local == "info" {
			data.dec = dec
			data.infoStart = se
			data.hasInfo = true
		}
		// A success without an info subtree is legal for void methods.
		return data, nil
	}

	se, err = nextStart(dec)
	if err != nil || se.Name.Local != "error" {
		return nil, &MalformedResponseError{Detail: "missing error element", Err: err}
	}

	data.Error, err = parseError(dec, code)
	if err != nil {
		return nil, err
	}

	return data, nil
}

// ParseBody is Parse over an HTTP response body; the returned Data owns the
// body and releases it on Close.
func ParseBody(body io.ReadCloser, headers http.Header) (*Data, error) {
	data, err := Parse(body, headers)
	if err != nil {
		body.Close()
		return nil, err
	}

	data.body = body

	return data, nil
}

func parseError(dec *xml.Decoder, code int) (*Error, error) {
	out := &Error{StatusCode: code}

	seenMessage := false

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, &MalformedResponseError{Detail: "truncated error element", Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "message":
				if err := dec.DecodeElement(&out.Message, &t); err != nil {
					return nil, &MalformedResponseError{Detail: "unreadable message element", Err: err}
				}
				seenMessage = true

			case "context":
				ctx, err := parseContext(dec)
				if err != nil {
					return nil, err
				}
				out.Context = ctx

			case "error-info":
				if err := dec.DecodeElement(&out.ErrorInfo, &t); err != nil {
					return nil, &MalformedResponseError{Detail: "unreadable error-info element", Err: err}
				}

			default:
				if err := dec.Skip(); err != nil {
					return nil, &MalformedResponseError{Detail: "truncated error element", Err: err}
				}
			}

		case xml.EndElement:
			if !seenMessage {
				return nil, &MalformedResponseError{Detail: "missing message element"}
			}
			return out, nil
		}
	}
}

func parseContext(dec *xml.Decoder) (*ServerContext, error) {
	out := &ServerContext{}

	seenName := false
	seenException := false

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, &MalformedResponseError{Detail: "truncated context element", Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "server-name":
				if err := dec.DecodeElement(&out.ServerName, &t); err != nil {
					return nil, &MalformedResponseError{Detail: "unreadable server-name element", Err: err}
				}
				seenName = true

			case "server-ip":
				var raw string
				if err := dec.DecodeElement(&raw, &t); err != nil {
					return nil, &MalformedResponseError{Detail: "unreadable server-ip element", Err: err}
				}
				// Unparsable addresses are skipped rather than failing
				// the whole parse.
				if ip := net.ParseIP(raw); ip != nil {
					out.ServerIPs = append(out.ServerIPs, ip)
				}

			case "exception":
				if err := dec.DecodeElement(&out.ExceptionText, &t); err != nil {
					return nil, &MalformedResponseError{Detail: "unreadable exception element", Err: err}
				}
				seenException = true

			default:
				if err := dec.Skip(); err != nil {
					return nil, &MalformedResponseError{Detail: "truncated context element", Err: err}
				}
			}

		case xml.EndElement:
			if !seenName {
				return nil, &MalformedResponseError{Detail: "missing server-name element"}
			}
			if !seenException {
				return nil, &MalformedResponseError{Detail: "missing exception element"}
			}
			return out, nil
		}
	}
}

func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}

		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}
