// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

// Package auth implements the closed set of request identities understood by
// the HealthGrid service: an anonymous application identity, an
// authenticated session identity, and the certificate-backed bootstrap
// identity used to establish a session credential. All three satisfy the
// message.Identity capability.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/healthgrid/apiclient/message"
)

// AnonymousIdentity identifies the calling application by its app id alone.
// Anonymous requests carry no auth section and no info hash.
type AnonymousIdentity struct {
	AppID uuid.UUID
}

// Configure populates the identity from a configuration map.
func (o *AnonymousIdentity) Configure(cfg map[string]interface{}) error {
	decoded := struct {
		AppID string                 `mapstructure:"app_id"`
		Rest  map[string]interface{} `mapstructure:",remain"`
	}{}

	if err := mapstructure.Decode(cfg, &decoded); err != nil {
		return err
	}

	appID, err := uuid.Parse(decoded.AppID)
	if err != nil {
		return fmt.Errorf("bad app_id: %w", err)
	}
	o.AppID = appID

	if len(decoded.Rest) > 0 {
		var unexpected []string
		for k := range decoded.Rest {
			unexpected = append(unexpected, k)
		}
		return fmt.Errorf("unexpected fields in config: %s",
			strings.Join(unexpected, ", "))
	}

	return o.validate()
}

// Authenticated always reports false for the anonymous identity.
func (o *AnonymousIdentity) Authenticated() bool {
	return false
}

// WriteIdentity writes the plain app-id identity block.
func (o *AnonymousIdentity) WriteIdentity(w *message.Writer) error {
	if err := o.validate(); err != nil {
		return err
	}

	w.Element("app-id", o.AppID.String())

	return nil
}

// SignHeader returns nil: anonymous requests have no auth section.
func (o *AnonymousIdentity) SignHeader(header []byte) ([]byte, error) {
	return nil, nil
}

func (o *AnonymousIdentity) validate() error {
	if o.AppID == uuid.Nil {
		return errors.New("missing app id")
	}

	return nil
}
