// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"compress/flate"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/healthgrid/apiclient/hgcrypto"
)

// MaxTokenLength is the byte budget for a persisted token (cookie-sized).
const MaxTokenLength = 2048

const (
	versionPlain     = 1
	versionEncrypted = 2

	ivSize = aes.BlockSize

	// Ceiling on the declared plaintext length accepted during decode, so a
	// corrupt or hostile token cannot force an unbounded inflate.
	maxPlainLength = 1 << 20
)

// ErrInvalidToken indicates a persisted token that failed any decoding step.
// Callers must treat this as "no session" and clear the stored token; a
// partially decoded session is never returned.
var ErrInvalidToken = errors.New("invalid session token")

// Codec encodes and decodes session state as an opaque versioned token of
// the form "<version>:<plainlen>-<base64 payload>". With no key configured
// the payload is deflate-compressed XML (version 1); with a key it is
// additionally AES-CBC encrypted under a fresh random IV prepended to the
// ciphertext (version 2). The decoder understands both versions; the encoder
// always produces the version implied by the configured key.
type Codec struct {
	key []byte
}

// NewCodec creates a Codec. A nil key selects the unencrypted version 1
// format; otherwise the key must be a valid AES key length.
func NewCodec(key []byte) (*Codec, error) {
	switch len(key) {
	case 0:
		return &Codec{}, nil
	case 16, 24, 32:
		return &Codec{key: key}, nil
	default:
		return nil, fmt.Errorf("bad AES key length %d", len(key))
	}
}

// NewCodecFromPassphrase creates an encrypting Codec whose key is derived
// from the supplied passphrase and salt.
func NewCodecFromPassphrase(passphrase, salt string) *Codec {
	return &Codec{key: hgcrypto.DeriveKey(passphrase, salt)}
}

// Encode serializes the session state as a token. If the full state does not
// fit the size budget the optional sub-payloads are dropped in order
// (application settings, then the record list, then both); if no variant
// fits, the smallest one is returned anyway rather than failing, since an
// oversized cookie is an accepted degraded mode.
func (c *Codec) Encode(state State) (string, error) {
	variants := []State{
		state,
		withoutSettings(state),
		withoutRecords(state),
		withoutRecords(withoutSettings(state)),
	}

	smallest := ""

	for _, v := range variants {
		token, err := c.encode(v)
		if err != nil {
			return "", err
		}

		if len(token) <= MaxTokenLength {
			return token, nil
		}

		if smallest == "" || len(token) < len(smallest) {
			smallest = token
		}
	}

	return smallest, nil
}

func (c *Codec) encode(state State) (string, error) {
	plain, err := xml.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("serializing session state: %w", err)
	}

	payload, err := deflate(plain)
	if err != nil {
		return "", fmt.Errorf("compressing session state: %w", err)
	}

	version := versionPlain

	if len(c.key) > 0 {
		version = versionEncrypted

		if payload, err = c.encrypt(payload); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("%d:%d-%s",
		version, len(plain), base64.StdEncoding.EncodeToString(payload)), nil
}

// Decode parses a persisted token back into session state. A token without a
// version tag is treated as legacy version 1. Any failure along the way
// yields ErrInvalidToken.
func (c *Codec) Decode(token string) (*State, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", ErrInvalidToken)
	}

	version := versionPlain
	payload := token

	if i := strings.IndexByte(token, ':'); i >= 0 {
		v, err := strconv.Atoi(token[:i])
		if err != nil {
			return nil, fmt.Errorf("bad version tag: %w", ErrInvalidToken)
		}
		version = v
		payload = token[i+1:]
	}

	i := strings.IndexByte(payload, '-')
	if i < 0 {
		return nil, fmt.Errorf("missing length separator: %w", ErrInvalidToken)
	}

	plainLen, err := strconv.Atoi(payload[:i])
	if err != nil || plainLen < 0 || plainLen > maxPlainLength {
		return nil, fmt.Errorf("bad plaintext length: %w", ErrInvalidToken)
	}

	blob, err := base64.StdEncoding.DecodeString(payload[i+1:])
	if err != nil {
		return nil, fmt.Errorf("bad base64 payload: %w", ErrInvalidToken)
	}

	switch version {
	case versionPlain:
		// nothing to undo
	case versionEncrypted:
		if blob, err = c.decrypt(blob); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown token version %d: %w", version, ErrInvalidToken)
	}

	plain, err := inflate(blob, plainLen)
	if err != nil {
		return nil, err
	}

	var state State
	if err := xml.Unmarshal(plain, &state); err != nil {
		return nil, fmt.Errorf("deserializing session state: %s: %w", err, ErrInvalidToken)
	}

	return &state, nil
}

func (c *Codec) encrypt(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generating IV: %w", err)
	}

	padded := padPKCS7(plain, aes.BlockSize)

	out := make([]byte, ivSize+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[ivSize:], padded)

	return out, nil
}

func (c *Codec) decrypt(blob []byte) ([]byte, error) {
	if len(c.key) == 0 {
		return nil, fmt.Errorf("no decryption key configured: %w", ErrInvalidToken)
	}

	if len(blob) < ivSize+aes.BlockSize || (len(blob)-ivSize)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext not block aligned: %w", ErrInvalidToken)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}

	iv := blob[:ivSize]
	out := make([]byte, len(blob)-ivSize)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, blob[ivSize:])

	return unpadPKCS7(out, aes.BlockSize)
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func inflate(data []byte, plainLen int) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	// Read one byte past the declared length so trailing garbage is caught.
	plain, err := io.ReadAll(io.LimitReader(r, int64(plainLen)+1))
	if err != nil {
		return nil, fmt.Errorf("inflating payload: %w", ErrInvalidToken)
	}

	if len(plain) != plainLen {
		return nil, fmt.Errorf("declared length %d does not match payload: %w",
			plainLen, ErrInvalidToken)
	}

	return plain, nil
}

func padPKCS7(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize

	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}

	return out
}

func unpadPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("bad padded length: %w", ErrInvalidToken)
	}

	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("bad padding: %w", ErrInvalidToken)
	}

	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("bad padding: %w", ErrInvalidToken)
		}
	}

	return data[:len(data)-n], nil
}

func withoutSettings(s State) State {
	s.ApplicationSettings = ""
	return s
}

func withoutRecords(s State) State {
	s.Records = nil
	return s
}
