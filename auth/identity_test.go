// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthgrid/apiclient/message"
	"github.com/healthgrid/apiclient/session"
)

var (
	testAppID        = uuid.MustParse("11111111-2222-3333-4444-555555555555")
	testSharedSecret = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

	testCredential = session.Credential{
		Token:        "asdt-0001",
		SharedSecret: testSharedSecret,
	}
)

type authSection struct {
	XMLName  xml.Name `xml:"auth"`
	HMACData *struct {
		Alg   string `xml:"algName,attr"`
		Value string `xml:",chardata"`
	} `xml:"hmac-data"`
	Sig *struct {
		Alg   string `xml:"algName,attr"`
		Value string `xml:",chardata"`
	} `xml:"sig"`
}

func TestAnonymousIdentity_Configure_ok(t *testing.T) {
	o := &AnonymousIdentity{}
	err := o.Configure(map[string]interface{}{
		"app_id": testAppID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, testAppID, o.AppID)
}

func TestAnonymousIdentity_Configure_bad_app_id(t *testing.T) {
	o := &AnonymousIdentity{}
	err := o.Configure(map[string]interface{}{"app_id": "not-a-uuid"})
	assert.ErrorContains(t, err, "bad app_id")
}

func TestAnonymousIdentity_Configure_unexpected_fields(t *testing.T) {
	o := &AnonymousIdentity{}
	expectedErr := `unexpected fields in config: shared_secret`
	err := o.Configure(map[string]interface{}{
		"app_id":        testAppID.String(),
		"shared_secret": "deadbeef",
	})
	assert.EqualError(t, err, expectedErr)
}

func TestAnonymousIdentity_WriteIdentity(t *testing.T) {
	o := &AnonymousIdentity{AppID: testAppID}

	var w message.Writer
	require.NoError(t, o.WriteIdentity(&w))

	assert.Equal(t, "<app-id>"+testAppID.String()+"</app-id>", string(w.Bytes()))
	assert.False(t, o.Authenticated())
}

func TestAnonymousIdentity_SignHeader_nil(t *testing.T) {
	o := &AnonymousIdentity{AppID: testAppID}

	section, err := o.SignHeader([]byte("<header></header>"))
	require.NoError(t, err)
	assert.Nil(t, section)
}

func TestSessionIdentity_Configure_ok(t *testing.T) {
	o := &SessionIdentity{}
	err := o.Configure(map[string]interface{}{
		"token":           "asdt-0001",
		"shared_secret":   testSharedSecret,
		"user_auth_token": "uat-1",
	})
	require.NoError(t, err)

	assert.Equal(t, testCredential, o.Credentials.Credential())
	assert.Equal(t, "uat-1", o.UserAuthToken)
}

func TestSessionIdentity_WriteIdentity_with_sub_credential(t *testing.T) {
	o := &SessionIdentity{
		Credentials:   NewStaticCredential(testCredential),
		UserAuthToken: "uat-1",
	}

	var w message.Writer
	require.NoError(t, o.WriteIdentity(&w))

	expected := "<auth-session>" +
		"<auth-token>asdt-0001</auth-token>" +
		"<user-auth-token>uat-1</user-auth-token>" +
		"</auth-session>"
	assert.Equal(t, expected, string(w.Bytes()))
	assert.True(t, o.Authenticated())
}

func TestSessionIdentity_SignHeader_matches_recompute(t *testing.T) {
	o := &SessionIdentity{Credentials: NewStaticCredential(testCredential)}

	header := []byte("<header><method>GetThings</method></header>")

	section, err := o.SignHeader(header)
	require.NoError(t, err)

	var parsed authSection
	require.NoError(t, xml.Unmarshal(section, &parsed))
	require.NotNil(t, parsed.HMACData)

	key, err := base64.StdEncoding.DecodeString(testSharedSecret)
	require.NoError(t, err)

	mac := hmac.New(sha256.New, key)
	mac.Write(header)

	assert.Equal(t, "HMACSHA256", parsed.HMACData.Alg)
	assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), parsed.HMACData.Value)
}

func TestSessionIdentity_no_credential(t *testing.T) {
	o := &SessionIdentity{Credentials: NewStaticCredential(session.Credential{})}

	var w message.Writer
	err := o.WriteIdentity(&w)
	assert.EqualError(t, err, "no valid session credential available")

	_, err = o.SignHeader([]byte("<header></header>"))
	assert.EqualError(t, err, "no valid session credential available")
}

func TestSessionIdentity_no_source(t *testing.T) {
	o := &SessionIdentity{}

	_, err := o.SignHeader([]byte("<header></header>"))
	assert.EqualError(t, err, "missing credential source")
}

func TestBootstrapIdentity_SignHeader_verifies(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	o := &BootstrapIdentity{AppID: testAppID, Key: key}

	header := []byte("<header><method>CreateAuthenticatedSessionToken</method></header>")

	section, err := o.SignHeader(header)
	require.NoError(t, err)

	var parsed authSection
	require.NoError(t, xml.Unmarshal(section, &parsed))
	require.NotNil(t, parsed.Sig)
	assert.Equal(t, "RSA-SHA256", parsed.Sig.Alg)

	raw, err := base64.StdEncoding.DecodeString(parsed.Sig.Value)
	require.NoError(t, err)

	digest := sha256.Sum256(header)
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], raw))
}

func TestBootstrapIdentity_missing_key(t *testing.T) {
	o := &BootstrapIdentity{AppID: testAppID}

	_, err := o.SignHeader([]byte("<header></header>"))
	assert.EqualError(t, err, "missing private key")
	assert.False(t, o.Authenticated())
}

func TestRenewableCredential_swaps_wholesale(t *testing.T) {
	rc := NewRenewableCredential(testCredential)
	assert.Equal(t, testCredential, rc.Credential())

	renewed := session.Credential{Token: "asdt-0002", SharedSecret: testSharedSecret}
	rc.Renew(renewed)
	assert.Equal(t, renewed, rc.Credential())
}

func TestRenewableCredential_concurrent_reads_during_renew(t *testing.T) {
	rc := NewRenewableCredential(testCredential)

	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				cred := rc.Credential()
				assert.True(t, cred.Valid())
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		for j := 0; j < 100; j++ {
			rc.Renew(session.Credential{
				Token:        fmt.Sprintf("asdt-%04d", j),
				SharedSecret: testSharedSecret,
			})
		}
	}()

	wg.Wait()

	assert.Equal(t, "asdt-0099", rc.Credential().Token)
}

func TestCredential_String_redacts(t *testing.T) {
	s := testCredential.String()
	assert.NotContains(t, s, testCredential.Token)
	assert.NotContains(t, s, testCredential.SharedSecret)
}

func TestMethod_Set(t *testing.T) {
	var m Method

	require.NoError(t, m.Set("session"))
	assert.Equal(t, MethodSession, m)

	require.NoError(t, m.Set("none"))
	assert.Equal(t, MethodAnonymous, m)

	assert.EqualError(t, m.Set("oauth2"), `unexpected Method "oauth2"`)
}
