// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

/*
Package apiclient implements the client side of the HealthGrid signed-XML
request protocol: it composes a typed remote procedure call into a signed
wire envelope, dispatches it resiliently over HTTP, and parses the
structured response.

Issuing a call

The user creates a Connection with a service URL and an identity. An
application without a session authenticates anonymously:

	id := &auth.AnonymousIdentity{AppID: appID}

	conn := apiclient.Connection{
		ServiceURL: "https://platform.healthgrid.example/wildcat",
		Identity:   id,
	}

	data, err := conn.Execute(ctx, apiclient.Call{
		Method:        "GetServiceDefinition",
		MethodVersion: 1,
	})

A service-level rejection is reported inside the returned data, not as a Go
error, so callers branch on the status code:

	if !data.Ok() {
		log.Printf("call rejected: %v", data.Error)
		return
	}

	var out myMethodResult
	if err := data.DecodeInfo(&out); err != nil { ... }

Authenticated sessions

A session credential is obtained by the bootstrap exchange, which signs the
request with the application certificate:

	boot := &auth.BootstrapIdentity{AppID: appID, Key: privateKey}

	creds := auth.NewRenewableCredential(session.Credential{})
	conn.Identity = &auth.SessionIdentity{Credentials: creds}
	conn.Bootstrap = boot

	if _, err := conn.Authenticate(ctx); err != nil { ... }

Subsequent calls embed the info hash in the header and HMAC the header with
the session shared secret. When the service reports the session token
expired, the connection renews the credential once and re-issues the call.

The user can also supply a custom Client object, for example to enable
request compression or tune the retry policy for transient 500 failures:

	client := common.NewClient()
	_ = client.SetCompression("gzip")
	_ = client.SetRetryPolicy(3, 2*time.Second)
	conn.Client = client

Persisting a session

The session package round-trips an authenticated session through a
cookie-sized opaque token, optionally encrypted:

	codec := session.NewCodecFromPassphrase(passphrase, salt)

	token, err := codec.Encode(state)
	...
	state, err := codec.Decode(token)
	if errors.Is(err, session.ErrInvalidToken) {
		// treat as "no session" and clear the stored token
	}
*/
package apiclient
