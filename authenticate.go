// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package apiclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/healthgrid/apiclient/auth"
	"github.com/healthgrid/apiclient/hgcrypto"
	"github.com/healthgrid/apiclient/message"
	"github.com/healthgrid/apiclient/session"
)

// MethodCreateSessionToken is the credential-exchange method: the one call
// signed with the application certificate instead of a session secret.
const MethodCreateSessionToken = "CreateAuthenticatedSessionToken"

type castResult struct {
	Token        string `xml:"token"`
	SharedSecret string `xml:"shared-secret"`
}

// Authenticate performs the credential bootstrap exchange: it composes a
// CreateAuthenticatedSessionToken call under the bootstrap identity, whose
// info section carries the app id and an RSA signature over the credential
// content, and parses the issued token and shared secret. When the
// connection's identity is a session identity over a renewable source, the
// fresh credential is installed atomically.
func (c *Connection) Authenticate(ctx context.Context) (session.Credential, error) {
	if c.Bootstrap == nil {
		return session.Credential{}, errors.New("bad configuration: no bootstrap identity")
	}

	params, err := bootstrapParameters(c.Bootstrap)
	if err != nil {
		return session.Credential{}, err
	}

	call := Call{
		Method:        MethodCreateSessionToken,
		MethodVersion: 2,
		ParametersXML: params,
	}

	data, err := c.newRequest(call, c.Bootstrap).Send(ctx)
	if err != nil {
		return session.Credential{}, fmt.Errorf("credential exchange failed: %w", err)
	}
	defer data.Close()

	if !data.Ok() {
		return session.Credential{}, fmt.Errorf("credential exchange rejected: %w", data.Error)
	}

	var res castResult
	if err := data.DecodeInfo(&res); err != nil {
		return session.Credential{}, fmt.Errorf("decoding credential exchange response: %w", err)
	}

	cred := session.Credential{
		Token:        res.Token,
		SharedSecret: res.SharedSecret,
	}

	if !cred.Valid() {
		return session.Credential{}, errors.New("credential exchange returned an incomplete credential")
	}

	if rc := c.renewable(); rc != nil {
		rc.Renew(cred)
	}

	return cred, nil
}

// bootstrapParameters builds the auth-info payload placed in the info
// section of the credential exchange. The content element is signed exactly
// as emitted and then embedded verbatim, so the service verifies the same
// bytes it reads.
func bootstrapParameters(b *auth.BootstrapIdentity) (string, error) {
	var content message.Writer

	content.Start("content")
	content.Element("app-id", b.AppID.String())
	content.Element("hmac-alg", hgcrypto.HMACAlgorithm)
	content.Element("signing-time", time.Now().UTC().Format(time.RFC3339))
	content.End("content")

	sig, err := hgcrypto.SignBootstrap(b.Key, content.Bytes())
	if err != nil {
		return "", fmt.Errorf("signing credential content: %w", err)
	}

	var w message.Writer

	w.Start("auth-info")
	w.Element("app-id", b.AppID.String())
	w.Start("credential")
	w.Start("appserver")
	w.StartAttr("sig",
		message.Attr{Name: "algName", Value: hgcrypto.SignatureAlgorithm},
		message.Attr{Name: "thumbprint", Value: b.Thumbprint})
	w.Text(sig)
	w.End("sig")
	w.Raw(content.Bytes())
	w.End("appserver")
	w.End("credential")
	w.End("auth-info")

	return string(w.Bytes()), nil
}
