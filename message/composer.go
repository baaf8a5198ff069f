// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

// Package message composes HealthGrid request envelopes: the info section
// carrying method parameters, the header carrying method metadata and
// identity, and the enclosing request element. Section ordering is dictated
// by the signing scheme: the info hash is computed before the header is
// built (it is embedded inside it), and the header is frozen before it is
// signed.
package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/healthgrid/apiclient/hgcrypto"
)

// Protocol constants for the request envelope.
const (
	requestElement   = "request"
	requestNamespace = "urn:org.healthgrid.platform.request"
	methodsNamespace = "urn:org.healthgrid.platform.methods"
)

// Defaults applied by Compose when the corresponding Params field is unset.
const (
	DefaultCultureCode = "en-US"
	DefaultTTLSeconds  = 1800
)

// Identity is the capability needed to place an identity block inside a
// request header and to produce the auth section over the finalized header
// bytes. Implementations are the closed set in the auth package: anonymous
// app identity, authenticated session, and bootstrap certificate.
type Identity interface {
	// Authenticated reports whether requests carry an auth-session block
	// and must embed the info hash in the header.
	Authenticated() bool

	// WriteIdentity writes the identity block (auth-session or app-id)
	// into the header at its fixed position.
	WriteIdentity(w *Writer) error

	// SignHeader produces the complete auth section for the finalized
	// header bytes, or nil if the identity does not sign requests.
	SignHeader(header []byte) ([]byte, error)
}

// Params describes one remote procedure call to be composed.
type Params struct {
	Method         string
	MethodVersion  int
	ParametersXML  string     // caller-supplied, embedded verbatim
	RecordID       *uuid.UUID // optional
	TargetPersonID *uuid.UUID // optional
	CultureCode    string
	FinalXSL       string // optional
	MessageTime    time.Time
	TTLSeconds     int
	ClientVersion  string
}

// Compose builds the info and header sections in canonical form. The hash of
// the exact info bytes is embedded in the header when the identity is
// authenticated. The returned slices must be treated as frozen: the header
// bytes are the signing input.
func Compose(p Params, id Identity) (info, header []byte, err error) {
	if p.Method == "" {
		return nil, nil, errors.New("no method name supplied")
	}
	if id == nil {
		return nil, nil, errors.New("no identity supplied")
	}

	if p.CultureCode == "" {
		p.CultureCode = DefaultCultureCode
	}
	if p.TTLSeconds <= 0 {
		p.TTLSeconds = DefaultTTLSeconds
	}
	if p.MessageTime.IsZero() {
		p.MessageTime = time.Now()
	}

	info = composeInfo(p.ParametersXML)

	var infoHash *hgcrypto.Data
	if id.Authenticated() {
		h := hgcrypto.Hash(info)
		infoHash = &h
	}

	header, err = composeHeader(p, id, infoHash)
	if err != nil {
		return nil, nil, err
	}

	return info, header, nil
}

// composeInfo wraps the caller-supplied parameters without transformation.
func composeInfo(parametersXML string) []byte {
	var w Writer

	w.Start("info")
	w.Raw([]byte(parametersXML))
	w.End("info")

	return w.Bytes()
}

// composeHeader emits the header fields in their fixed wire order.
func composeHeader(p Params, id Identity, infoHash *hgcrypto.Data) ([]byte, error) {
	var w Writer

	w.Start("header")

	w.Element("method", p.Method)
	w.Element("method-version", fmt.Sprint(p.MethodVersion))

	if p.TargetPersonID != nil {
		w.Element("target-person-id", p.TargetPersonID.String())
	}
	if p.RecordID != nil {
		w.Element("record-id", p.RecordID.String())
	}

	if err := id.WriteIdentity(&w); err != nil {
		return nil, fmt.Errorf("writing identity block: %w", err)
	}

	w.Element("culture-code", p.CultureCode)

	if p.FinalXSL != "" {
		w.Element("final-xsl", p.FinalXSL)
	}

	w.Element("msg-time", p.MessageTime.UTC().Format(time.RFC3339))
	w.Element("msg-ttl", fmt.Sprint(p.TTLSeconds))
	w.Element("version", p.ClientVersion)

	if infoHash != nil {
		w.Start("info-hash")
		w.AlgElement("hash-data", infoHash.Algorithm, infoHash.Value)
		w.End("info-hash")
	}

	w.End("header")

	return w.Bytes(), nil
}

// Assemble wraps the sections into the request envelope. auth may be nil for
// anonymous requests. The sections are embedded byte-for-byte as composed,
// so an already-computed header signature stays valid.
func Assemble(auth, header, info []byte) []byte {
	var w Writer

	w.Raw([]byte(fmt.Sprintf(`<%s xmlns="%s" xmlns:hg="%s">`,
		requestElement, requestNamespace, methodsNamespace)))

	if len(auth) > 0 {
		w.Raw(auth)
	}
	w.Raw(header)
	w.Raw(info)

	w.End(requestElement)

	return w.Bytes()
}
