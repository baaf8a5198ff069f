// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/healthgrid/apiclient/auth"
	"github.com/healthgrid/apiclient/common"
	"github.com/healthgrid/apiclient/message"
	"github.com/healthgrid/apiclient/response"
)

// DefaultClientVersion is reported in the version header field unless the
// caller overrides it.
const DefaultClientVersion = "HealthGrid-Go-SDK/1.0"

// Call describes one remote procedure call against the service.
type Call struct {
	Method         string
	MethodVersion  int
	ParametersXML  string     // method parameters, embedded verbatim in the info section
	RecordID       *uuid.UUID // optional health record scope
	TargetPersonID *uuid.UUID // optional acting-person scope
	FinalXSL       string     // optional server-side transform
}

// Connection holds the configuration for issuing calls to one HealthGrid
// service endpoint. A Connection may be shared by concurrent calls: its
// fields are read-only after setup, and the session credential behind the
// identity is swapped wholesale on renewal.
type Connection struct {
	ServiceURL    string           // endpoint the envelopes are POSTed to
	Identity      message.Identity // identity mode for composed requests
	Client        *common.Client   // HTTP(s) client connection configuration
	Logger        *zap.Logger
	ClientVersion string
	CultureCode   string
	TTLSeconds    int

	// Bootstrap enables Authenticate and automatic credential renewal.
	Bootstrap *auth.BootstrapIdentity

	// CorrelationID is attached to every dispatch; when empty a fresh UUID
	// is generated per request so server logs stay correlatable.
	CorrelationID string

	// Defaults for unset Client/Logger/ClientVersion are resolved once, on
	// first use, so dispatching never writes to the shared configuration.
	resolveOnce     sync.Once
	resolvedClient  *common.Client
	resolvedLogger  *zap.Logger
	resolvedVersion string
}

// SetServiceURL sets the service endpoint supplied by the user
func (c *Connection) SetServiceURL(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("malformed service URL: %w", err)
	}
	if !u.IsAbs() {
		return errors.New("the supplied service URL is not in absolute form")
	}
	c.ServiceURL = uri
	return nil
}

// SetIdentity sets the identity mode supplied by the user
func (c *Connection) SetIdentity(id message.Identity) error {
	if id == nil {
		return errors.New("no identity supplied")
	}
	c.Identity = id
	return nil
}

// SetClient sets the HTTP(s) client connection configuration
func (c *Connection) SetClient(client *common.Client) error {
	if client == nil {
		return errors.New("no client supplied")
	}
	c.Client = client
	return nil
}

// SetBootstrap sets the bootstrap identity used for credential exchange
func (c *Connection) SetBootstrap(b *auth.BootstrapIdentity) error {
	if b == nil {
		return errors.New("no bootstrap identity supplied")
	}
	c.Bootstrap = b
	return nil
}

// Execute composes, signs, dispatches and parses one call. The returned
// Data owns the response body; callers must Close it when done navigating
// the info subtree. A service-level failure is reported inside Data, not as
// an error: branch on Data.Ok().
func (c *Connection) Execute(ctx context.Context, call Call) (*response.Data, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	data, err := c.NewRequest(call).Send(ctx)
	if err != nil {
		return nil, err
	}

	// One transparent renewal when the session token has expired and the
	// connection can bootstrap a fresh credential.
	if data.Error != nil &&
		data.Error.StatusCode == response.StatusAuthSessionTokenExpired &&
		c.renewable() != nil {

		_, logger, _ := c.runtime()

		logger.Info("session token expired, renewing credential")

		if _, err := c.Authenticate(ctx); err != nil {
			logger.Warn("credential renewal failed", zap.Error(err))
			return data, nil
		}

		data.Close()

		return c.NewRequest(call).Send(ctx)
	}

	return data, nil
}

// check makes sure that the connection object is in good shape. It never
// modifies the connection; whether an identity is present is checked per
// request, since the credential exchange supplies its own.
func (c *Connection) check() error {
	if c.ServiceURL == "" {
		return errors.New("bad configuration: no service URL")
	}

	u, err := url.Parse(c.ServiceURL)
	if err != nil || !u.IsAbs() {
		return errors.New("bad configuration: service URL is not an absolute URL")
	}

	return nil
}

// runtime returns the client, logger and client version to dispatch with,
// falling back to defaults for unset fields. The fallbacks are resolved into
// shadow fields exactly once, keeping concurrent calls over one shared
// Connection free of writes to the caller-visible configuration.
func (c *Connection) runtime() (*common.Client, *zap.Logger, string) {
	c.resolveOnce.Do(func() {
		c.resolvedClient = c.Client
		if c.resolvedClient == nil {
			c.resolvedClient = common.NewClient()
		}

		c.resolvedLogger = c.Logger
		if c.resolvedLogger == nil {
			c.resolvedLogger = zap.NewNop()
		}

		c.resolvedVersion = c.ClientVersion
		if c.resolvedVersion == "" {
			c.resolvedVersion = DefaultClientVersion
		}
	})

	return c.resolvedClient, c.resolvedLogger, c.resolvedVersion
}

// renewable returns the swappable credential source behind the identity, or
// nil when the connection cannot renew transparently.
func (c *Connection) renewable() *auth.RenewableCredential {
	if c.Bootstrap == nil {
		return nil
	}

	si, ok := c.Identity.(*auth.SessionIdentity)
	if !ok {
		return nil
	}

	rc, ok := si.Credentials.(*auth.RenewableCredential)
	if !ok {
		return nil
	}

	return rc
}
