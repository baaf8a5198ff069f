// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/healthgrid/apiclient/hgcrypto"
	"github.com/healthgrid/apiclient/message"
)

// BootstrapIdentity establishes a new session credential using the
// application certificate. The header carries the plain app-id block (there
// is no session yet, hence no info hash), while the auth section carries the
// RSA signature of the finalized header bytes.
type BootstrapIdentity struct {
	AppID uuid.UUID
	Key   *rsa.PrivateKey

	// Thumbprint of the application certificate, letting the service select
	// the registered public key to verify against.
	Thumbprint string
}

// Configure populates the identity from a configuration map. The private key
// is loaded from the PEM file named by key_file.
func (o *BootstrapIdentity) Configure(cfg map[string]interface{}) error {
	decoded := struct {
		AppID      string                 `mapstructure:"app_id"`
		KeyFile    string                 `mapstructure:"key_file"`
		Thumbprint string                 `mapstructure:"thumbprint"`
		Rest       map[string]interface{} `mapstructure:",remain"`
	}{}

	if err := mapstructure.Decode(cfg, &decoded); err != nil {
		return err
	}

	appID, err := uuid.Parse(decoded.AppID)
	if err != nil {
		return fmt.Errorf("bad app_id: %w", err)
	}
	o.AppID = appID
	o.Thumbprint = decoded.Thumbprint

	if decoded.KeyFile != "" {
		if o.Key, err = LoadPrivateKey(decoded.KeyFile); err != nil {
			return err
		}
	}

	if err := o.validate(); err != nil {
		return err
	}

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

// Authenticated reports false: bootstrap requests have no session yet, so
// the header carries neither auth-session block nor info hash.
func (o *BootstrapIdentity) Authenticated() bool {
	return false
}

// WriteIdentity writes the plain app-id identity block.
func (o *BootstrapIdentity) WriteIdentity(w *message.Writer) error {
	if err := o.validate(); err != nil {
		return err
	}

	w.Element("app-id", o.AppID.String())

	return nil
}

// SignHeader produces the auth section: the RSA signature of the finalized
// header bytes under the application certificate's private key.
func (o *BootstrapIdentity) SignHeader(header []byte) ([]byte, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	sig, err := hgcrypto.SignBootstrap(o.Key, header)
	if err != nil {
		return nil, fmt.Errorf("signing header: %w", err)
	}

	var w message.Writer
	w.Start("auth")
	w.AlgElement("sig", hgcrypto.SignatureAlgorithm, sig)
	w.End("auth")

	return w.Bytes(), nil
}

func (o *BootstrapIdentity) validate() error {
	if o.AppID == uuid.Nil {
		return errors.New("missing app id")
	}

	if o.Key == nil {
		return errors.New("missing private key")
	}

	return nil
}
