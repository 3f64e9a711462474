package api

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	headerKey       = "KALSHI-ACCESS-KEY"
	headerTimestamp = "KALSHI-ACCESS-TIMESTAMP"
	headerSignature = "KALSHI-ACCESS-SIGNATURE"
)

// Signer adds Kalshi's RSA-PSS authentication headers to requests.
type Signer struct {
	keyID string
	key   *rsa.PrivateKey
	now   func() time.Time
}

func NewSigner(keyID string, key *rsa.PrivateKey) (*Signer, error) {
	if keyID == "" {
		return nil, errors.New("API key ID is required")
	}
	if key == nil {
		return nil, errors.New("private key is required")
	}
	return &Signer{keyID: keyID, key: key, now: time.Now}, nil
}

// Sign signs timestamp_ms + method + path of req. The query string is not
// part of the signed message.
func (s *Signer) Sign(req *http.Request) error {
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)

	sig, err := s.signature(ts + req.Method + req.URL.Path)
	if err != nil {
		return err
	}

	req.Header.Set(headerKey, s.keyID)
	req.Header.Set(headerTimestamp, ts)
	req.Header.Set(headerSignature, sig)
	return nil
}

func (s *Signer) signature(message string) (string, error) {
	hashed := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, hashed[:],
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
	if err != nil {
		return "", fmt.Errorf("couldn't sign request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
