package iotmqtt

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// mintToken signs a fresh connection JWT. The bridge ignores the username
// and takes the token as password; the audience must be the cloud project.
func mintToken(cfg Config, now time.Time) (string, error) {
	pem, err := os.ReadFile(cfg.PrivateKeyFile)
	if err != nil {
		return "", fmt.Errorf("read private key: %w", err)
	}

	lifetime := cfg.TokenLifetime
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		Audience:  jwt.ClaimStrings{cfg.ProjectID},
	}

	var (
		method jwt.SigningMethod
		key    any
	)
	switch cfg.Algorithm {
	case "RS256":
		method = jwt.SigningMethodRS256
		key, err = jwt.ParseRSAPrivateKeyFromPEM(pem)
	case "ES256":
		method = jwt.SigningMethodES256
		key, err = jwt.ParseECPrivateKeyFromPEM(pem)
	default:
		return "", fmt.Errorf("unsupported JWT algorithm %q", cfg.Algorithm)
	}
	if err != nil {
		return "", fmt.Errorf("parse %s private key: %w", cfg.Algorithm, err)
	}

	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
