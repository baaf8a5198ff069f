// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package response

// Service status codes carried in the response code element. The full
// catalogue is much larger; these are the codes the client branches on.
const (
	StatusOK                      = 0
	StatusFailed                  = 1
	StatusBadHTTP                 = 2
	StatusInvalidXML              = 3
	StatusInvalidApp              = 7
	StatusAccessDenied            = 11
	StatusAuthSessionTokenExpired = 65
)
