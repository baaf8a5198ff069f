// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package hgcrypto

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_known_vector(t *testing.T) {
	d := Hash([]byte("hello"))

	assert.Equal(t, "SHA256", d.Algorithm)
	assert.Equal(t, "LPJNul+wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ=", d.Value)
}

func TestHash_deterministic(t *testing.T) {
	a := Hash([]byte("payload"))
	b := Hash([]byte("payload"))
	c := Hash([]byte("other payload"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Value, c.Value)
}

func TestHMAC_matches_independent_recompute(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	secret := base64.StdEncoding.EncodeToString(key)
	data := []byte("<header><method>GetThings</method></header>")

	d, err := HMAC(secret, data)
	require.NoError(t, err)

	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.Equal(t, "HMACSHA256", d.Algorithm)
	assert.Equal(t, expected, d.Value)
}

func TestHMAC_bad_secret(t *testing.T) {
	_, err := HMAC("not!base64!!", []byte("data"))
	assert.ErrorContains(t, err, "decoding shared secret")
}

func TestSignBootstrap_verifies(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	data := []byte("<header><method>CreateAuthenticatedSessionToken</method></header>")

	sig, err := SignBootstrap(key, data)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)

	digest := sha256.Sum256(data)
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], raw))
}

func TestSignBootstrap_nil_key(t *testing.T) {
	_, err := SignBootstrap(nil, []byte("data"))
	assert.EqualError(t, err, "no private key supplied")
}

func TestDeriveKey_deterministic_and_salt_dependent(t *testing.T) {
	k1 := DeriveKey("passphrase", "salt-1")
	k2 := DeriveKey("passphrase", "salt-1")

	assert.Len(t, k1, 32)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, DeriveKey("passphrase", "salt-2"))
	assert.NotEqual(t, k1, DeriveKey("other", "salt-1"))
}
