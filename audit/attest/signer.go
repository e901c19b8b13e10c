package attest

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goRefMon/audit"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrDigestMismatch is returned when a token does not match the buffer
	// it is presented with.
	ErrDigestMismatch = errors.New("attestation digest mismatch")
	// ErrNoSigningKey is returned by Sign on a verify-only signer.
	ErrNoSigningKey = errors.New("attestation signer has no private key")
)

// Config configures a Signer. Keys are raw Ed25519 bytes or PEM.
type Config struct {
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	KeyID      string
	// VerifyKeys selects the verification key by the token's kid header.
	VerifyKeys map[string][]byte
	// MaxFutureIAT rejects tokens issued too far ahead; zero means 10m.
	MaxFutureIAT time.Duration
}

// Claims is the attestation payload.
type Claims struct {
	Digest   string `json:"dig"`
	Size     int    `json:"len"`
	Tag      string `json:"tag"`
	Category string `json:"cat,omitempty"`
	AuditID  uint16 `json:"aid,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues and verifies attestation tokens.
type Signer struct {
	config Config
	sign   ed25519.PrivateKey
	verify ed25519.PublicKey
	keys   map[string]ed25519.PublicKey
}

// NewSigner validates cfg. A signer without a private key can only verify.
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	s := &Signer{config: cfg, keys: make(map[string]ed25519.PublicKey)}
	if len(cfg.PrivateKey) > 0 {
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		s.sign = priv
		s.verify = priv.Public().(ed25519.PublicKey)
	}
	if len(cfg.PublicKey) > 0 {
		pub, err := parseEdPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		s.verify = pub
	}
	for kid, key := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		pub, err := parseEdPublicKey(key)
		if err != nil {
			return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
		}
		s.keys[kid] = pub
	}
	if s.verify == nil && len(s.keys) == 0 {
		return nil, errors.New("ed25519 requires a private, public or verify key")
	}
	if cfg.KeyID != "" && len(s.keys) > 0 {
		if _, ok := s.keys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}
	return s, nil
}

func digest(buf []byte) string {
	sum := sha256.Sum256(buf)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Sign returns an attestation token for item.
func (s *Signer) Sign(item *audit.WorkItem) (string, error) {
	if s.sign == nil {
		return "", ErrNoSigningKey
	}

	now := time.Now()
	claims := Claims{
		Digest: digest(item.Buffer),
		Size:   len(item.Buffer),
		Tag:    item.Tag.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   s.config.Issuer,
		},
	}
	if item.Tag == audit.TagAuditRecord {
		rec, err := audit.Decode(item.Buffer)
		if err != nil {
			return "", err
		}
		claims.Category = rec.Category.String()
		claims.AuditID = rec.AuditID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	if s.config.KeyID != "" {
		token.Header["kid"] = s.config.KeyID
	}
	return token.SignedString(s.sign)
}

// Verify checks tokenStr and that it attests exactly buf.
func (s *Signer) Verify(tokenStr string, buf []byte) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuedAt(),
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if len(s.keys) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := s.keys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return key, nil
		}
		return s.verify, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(time.Now().Add(s.config.MaxFutureIAT)) {
		return nil, errors.New("token iat too far in the future")
	}
	if claims.Size != len(buf) || claims.Digest != digest(buf) {
		return nil, ErrDigestMismatch
	}
	return claims, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
