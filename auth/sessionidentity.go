// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/healthgrid/apiclient/hgcrypto"
	"github.com/healthgrid/apiclient/message"
	"github.com/healthgrid/apiclient/session"
)

// SessionIdentity authenticates requests with a session credential: the
// header embeds an auth-session block and the info hash, and the auth
// section carries the HMAC of the finalized header bytes keyed with the
// session shared secret.
type SessionIdentity struct {
	Credentials CredentialSource

	// UserAuthToken is the optional sub-credential identifying the end user
	// on whose behalf the application is acting.
	UserAuthToken string
}

// Configure populates the identity from a configuration map. The resulting
// credential is fixed; use a RenewableCredential source directly when the
// credential must be swappable.
func (o *SessionIdentity) Configure(cfg map[string]interface{}) error {
	decoded := struct {
		Token         string                 `mapstructure:"token"`
		SharedSecret  string                 `mapstructure:"shared_secret"`
		UserAuthToken string                 `mapstructure:"user_auth_token"`
		Rest          map[string]interface{} `mapstructure:",remain"`
	}{}

	if err := mapstructure.Decode(cfg, &decoded); err != nil {
		return err
	}

	if decoded.Token == "" {
		return errors.New("missing token")
	}

	if decoded.SharedSecret == "" {
		return errors.New("missing shared_secret")
	}

	o.Credentials = NewStaticCredential(session.Credential{
		Token:        decoded.Token,
		SharedSecret: decoded.SharedSecret,
	})
	o.UserAuthToken = decoded.UserAuthToken

	if len(decoded.Rest) > 0 {
		var unexpected []string
		for k := range decoded.Rest {
			unexpected = append(unexpected, k)
		}
		return fmt.Errorf("unexpected fields in config: %s",
			strings.Join(unexpected, ", "))
	}

	return nil
}

// Authenticated always reports true for the session identity.
func (o *SessionIdentity) Authenticated() bool {
	return true
}

// WriteIdentity writes the auth-session identity block.
func (o *SessionIdentity) WriteIdentity(w *message.Writer) error {
	if err := o.validate(); err != nil {
		return err
	}

	cred := o.Credentials.Credential()
	if !cred.Valid() {
		return errors.New("no valid session credential available")
	}

	w.Start("auth-session")
	w.Element("auth-token", cred.Token)
	if o.UserAuthToken != "" {
		w.Element("user-auth-token", o.UserAuthToken)
	}
	w.End("auth-session")

	return nil
}

// SignHeader produces the auth section: the HMAC of the finalized header
// bytes under the session shared secret.
func (o *SessionIdentity) SignHeader(header []byte) ([]byte, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	cred := o.Credentials.Credential()
	if !cred.Valid() {
		return nil, errors.New("no valid session credential available")
	}

	mac, err := hgcrypto.HMAC(cred.SharedSecret, header)
	if err != nil {
		return nil, fmt.Errorf("signing header: %w", err)
	}

	var w message.Writer
	w.Start("auth")
	w.AlgElement("hmac-data", mac.Algorithm, mac.Value)
	w.End("auth")

	return w.Bytes(), nil
}

func (o *SessionIdentity) validate() error {
	if o.Credentials == nil {
		return errors.New("missing credential source")
	}

	return nil
}
