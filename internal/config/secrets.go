package config

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"go.yaml.in/yaml/v4"
)

// RSAPrivateKey wraps *rsa.PrivateKey and decodes from YAML either as PEM
// text or as base64-encoded PEM. An empty value leaves the key nil.
type RSAPrivateKey struct {
	*rsa.PrivateKey
}

func (k *RSAPrivateKey) UnmarshalYAML(value *yaml.Node) error {
	var encoded string
	if err := value.Decode(&encoded); err != nil {
		return err
	}

	if strings.TrimSpace(encoded) == "" {
		return nil
	}

	key, err := ParseRSAPrivateKey(encoded)
	if err != nil {
		return fmt.Errorf("decode RSA private key: %w", err)
	}

	k.PrivateKey = key
	return nil
}

// IsSet reports whether a key was configured.
func (k RSAPrivateKey) IsSet() bool {
	return k.PrivateKey != nil
}

// ParseRSAPrivateKey reads a PKCS#1 or PKCS#8 RSA key from PEM text or base64-encoded PEM.
func ParseRSAPrivateKey(s string) (*rsa.PrivateKey, error) {
	s = strings.TrimSpace(s)
	pemBytes := []byte(s)
	if !strings.HasPrefix(s, "-----BEGIN") {
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("base64 decode: %w", err)
		}
		pemBytes = decoded
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	// Try PKCS#1 first, then PKCS#8
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	keyAny, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	key, ok := keyAny.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an RSA private key")
	}

	return key, nil
}
