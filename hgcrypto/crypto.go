// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

// Package hgcrypto implements the primitive operations used to hash and sign
// HealthGrid wire messages: unkeyed content hashing, keyed hashing with a
// session shared secret, and the RSA signature used to bootstrap a new
// session credential from an application certificate.
package hgcrypto

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Algorithm tags carried on the wire next to each digest. The service
// rejects requests whose tag does not match the digest it recomputes.
const (
	HashAlgorithm      = "SHA256"
	HMACAlgorithm      = "HMACSHA256"
	SignatureAlgorithm = "RSA-SHA256"
)

// PBKDF2 parameters for deriving a token-encryption key from a passphrase.
const (
	kdfIterations = 10000
	kdfKeyLen     = 32
)

// Data is a digest value together with the algorithm tag that produced it.
// The Value is always standard base64.
type Data struct {
	Algorithm string
	Value     string
}

// Hash computes the unkeyed content hash of data.
func Hash(data []byte) Data {
	sum := sha256.Sum256(data)

	return Data{
		Algorithm: HashAlgorithm,
		Value:     base64.StdEncoding.EncodeToString(sum[:]),
	}
}

// HMAC computes the keyed hash of data using the session shared secret. The
// secret is the base64 key material issued alongside the auth token.
func HMAC(sharedSecret string, data []byte) (Data, error) {
	key, err := base64.StdEncoding.DecodeString(sharedSecret)
	if err != nil {
		return Data{}, fmt.Errorf("decoding shared secret: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(data)

	return Data{
		Algorithm: HMACAlgorithm,
		Value:     base64.StdEncoding.EncodeToString(mac.Sum(nil)),
	}, nil
}

// SignBootstrap signs data with the application certificate's private key.
// Used only while establishing a new session credential, when no shared
// secret exists yet.
func SignBootstrap(key *rsa.PrivateKey, data []byte) (string, error) {
	if key == nil {
		return "", fmt.Errorf("no private key supplied")
	}

	digest := sha256.Sum256(data)

	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing bootstrap payload: %w", err)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

// DeriveKey derives a 32-byte AES key from a passphrase and salt for use by
// the session token codec.
func DeriveKey(passphrase, salt string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(salt), kdfIterations, kdfKeyLen, sha256.New)
}
