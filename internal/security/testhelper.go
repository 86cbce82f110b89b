package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"time"
)

// Token parameters for unit tests, mirroring the config defaults.
const (
	TestIssuer   = "painel-auth-test"
	TestAudience = "painel-api-test"
)

// NewTestTokenProvider returns a TokenProvider over a freshly generated
// ES256 (P-256) key pair. For unit tests only; key generation on this curve
// is cheap enough to run per test.
func NewTestTokenProvider() (*TokenProvider, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(key, key.Public(), TestIssuer, TestAudience, 15*time.Minute, 24*time.Hour), nil
}

// newTestProviderSharingKey returns a provider signing with p's key pair but
// different claims parameters, for cross-issuer and cross-audience tests.
func newTestProviderSharingKey(p *TokenProvider, issuer, audience string) *TokenProvider {
	return NewTokenProvider(p.privateKey, p.publicKey, issuer, audience, time.Minute, time.Hour)
}
