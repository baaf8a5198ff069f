// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package response

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthgrid/apiclient/common"
)

func parseString(t *testing.T, body string) (*Data, error) {
	t.Helper()
	return Parse(strings.NewReader(body), http.Header{})
}

func TestParse_ok_with_info(t *testing.T) {
	body := `
<response>
  <code>0</code>
  <info><thing><id>42</id><name>weight</name></thing></info>
</response>`

	data, err := parseString(t, body)
	require.NoError(t, err)

	assert.True(t, data.Ok())
	assert.Equal(t, StatusOK, data.StatusCode)
	assert.Nil(t, data.Error)

	out := struct {
		Thing struct {
			ID   int    `xml:"id"`
			Name string `xml:"name"`
		} `xml:"thing"`
	}{}
	require.NoError(t, data.DecodeInfo(&out))

	assert.Equal(t, 42, out.Thing.ID)
	assert.Equal(t, "weight", out.Thing.Name)
}

func TestParse_ok_without_info(t *testing.T) {
	data, err := parseString(t, `<response><code>0</code></response>`)
	require.NoError(t, err)

	assert.True(t, data.Ok())

	var out struct{}
	assert.ErrorIs(t, data.DecodeInfo(&out), ErrNoInfo)
}

func TestParse_missing_code(t *testing.T) {
	_, err := parseString(t, `<response><info/></response>`)

	var merr *MalformedResponseError
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, merr.Error(), "missing code element")
}

func TestParse_missing_root(t *testing.T) {
	_, err := parseString(t, `not xml at all`)

	var merr *MalformedResponseError
	assert.ErrorAs(t, err, &merr)
}

func TestParse_error_with_full_context(t *testing.T) {
	body := `
<response>
  <code>11</code>
  <error>
    <message>access denied to record</message>
    <context>
      <server-name>hg-front-07</server-name>
      <server-ip>10.0.0.7</server-ip>
      <server-ip>not-an-ip</server-ip>
      <server-ip>2001:db8::7</server-ip>
      <exception>AccessDeniedException: no grant for type</exception>
    </context>
    <error-info>record=0c2a7f0e</error-info>
  </error>
</response>`

	data, err := parseString(t, body)
	require.NoError(t, err)

	assert.False(t, data.Ok())
	assert.Equal(t, StatusAccessDenied, data.StatusCode)

	require.NotNil(t, data.Error)
	assert.Equal(t, StatusAccessDenied, data.Error.StatusCode)
	assert.Equal(t, "access denied to record", data.Error.Message)
	assert.Equal(t, "record=0c2a7f0e", data.Error.ErrorInfo)

	require.NotNil(t, data.Error.Context)
	assert.Equal(t, "hg-front-07", data.Error.Context.ServerName)
	assert.Contains(t, data.Error.Context.ExceptionText, "AccessDeniedException")

	// The unparsable address is skipped, not fatal.
	require.Len(t, data.Error.Context.ServerIPs, 2)
	assert.Equal(t, "10.0.0.7", data.Error.Context.ServerIPs[0].String())
	assert.Equal(t, "2001:db8::7", data.Error.Context.ServerIPs[1].String())
}

func TestParse_error_optional_fields_absent(t *testing.T) {
	body := `<response><code>1</code><error><message>boom</message></error></response>`

	data, err := parseString(t, body)
	require.NoError(t, err)

	require.NotNil(t, data.Error)
	assert.Equal(t, "boom", data.Error.Message)
	assert.Empty(t, data.Error.ErrorInfo)
	assert.Nil(t, data.Error.Context)
}

func TestParse_error_missing_message(t *testing.T) {
	body := `<response><code>1</code><error><error-info>x</error-info></error></response>`

	_, err := parseString(t, body)

	var merr *MalformedResponseError
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, merr.Error(), "missing message element")
}

func TestParse_error_context_missing_server_name(t *testing.T) {
	body := `
<response>
  <code>1</code>
  <error>
    <message>boom</message>
    <context><exception>x</exception></context>
  </error>
</response>`

	_, err := parseString(t, body)

	var merr *MalformedResponseError
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, merr.Error(), "missing server-name element")
}

func TestParse_error_missing_error_element(t *testing.T) {
	_, err := parseString(t, `<response><code>1</code></response>`)

	var merr *MalformedResponseError
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, merr.Error(), "missing error element")
}

func TestData_info_access_on_error_response(t *testing.T) {
	body := `<response><code>1</code><error><message>boom</message></error></response>`

	data, err := parseString(t, body)
	require.NoError(t, err)

	_, _, err = data.InfoCursor()
	assert.ErrorIs(t, err, ErrErrorResponse)

	var out struct{}
	assert.ErrorIs(t, data.DecodeInfo(&out), ErrErrorResponse)
}

func TestData_info_cursor_streams_subtree(t *testing.T) {
	body := `<response><code>0</code><info><a>1</a><b>2</b></info></response>`

	data, err := parseString(t, body)
	require.NoError(t, err)

	dec, start, err := data.InfoCursor()
	require.NoError(t, err)
	assert.Equal(t, "info", start.Name.Local)

	out := struct {
		A int `xml:"a"`
		B int `xml:"b"`
	}{}
	require.NoError(t, dec.DecodeElement(&out, start))
	assert.Equal(t, 1, out.A)
	assert.Equal(t, 2, out.B)
}

func TestParse_response_id_from_headers(t *testing.T) {
	headers := http.Header{}
	headers.Set(common.HeaderResponseID, "resp-7")

	data, err := Parse(strings.NewReader(`<response><code>0</code></response>`), headers)
	require.NoError(t, err)

	assert.Equal(t, "resp-7", data.ResponseID)
}
