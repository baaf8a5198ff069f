// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/xml"
	"time"

	"github.com/google/uuid"
)

// Record identifies one health record the session is authorized to read.
type Record struct {
	ID   uuid.UUID `xml:"id"`
	Name string    `xml:"name"`
}

// State is everything needed to resume an authenticated session: the
// credential, the person it belongs to, the selected record and, optionally,
// per-application settings and the full authorized record list. The two
// optional parts are the first to go when a persisted token would exceed its
// size budget (settings first, then the record list).
type State struct {
	XMLName xml.Name `xml:"session"`

	Credential       Credential `xml:"credential"`
	PersonID         uuid.UUID  `xml:"person-id"`
	PersonName       string     `xml:"person-name,omitempty"`
	SelectedRecordID uuid.UUID  `xml:"selected-record-id"`
	Expires          time.Time  `xml:"expires"`

	ApplicationSettings string   `xml:"app-settings,omitempty"`
	Records             []Record `xml:"record,omitempty"`
}
