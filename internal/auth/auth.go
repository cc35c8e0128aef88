package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AdminSubject is the JWT subject that grants admin access.
const AdminSubject = "admin"

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrInvalidSecret = errors.New("invalid admin secret")
)

// Authenticator issues and verifies bearer tokens and the admin secret.
type Authenticator struct {
	jwtSecret []byte
	adminHash []byte
}

// New builds an Authenticator. Without a JWT secret an ephemeral one is generated,
// so tokens do not survive a restart. adminSecretHash is a bcrypt hash; when empty
// only admin tokens are accepted.
func New(jwtSecret, adminSecretHash string) (*Authenticator, error) {
	secret := []byte(strings.TrimSpace(jwtSecret))
	if len(secret) == 0 {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			return nil, eris.Wrap(err, "auth: generate fallback jwt secret")
		}
		secret = []byte(base64.RawURLEncoding.EncodeToString(buf))
		zap.L().Warn("auth: jwt secret not set, using ephemeral in-memory secret")
	}

	hash := strings.TrimSpace(adminSecretHash)
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, eris.Wrap(err, "auth: admin secret hash is not a bcrypt hash")
		}
	}
	return &Authenticator{jwtSecret: secret, adminHash: []byte(hash)}, nil
}

// GenerateToken signs an HS256 token for subject valid for ttl.
func (a *Authenticator) GenerateToken(subject string, ttl time.Duration) (string, error) {
	return GenerateToken(a.jwtSecret, subject, ttl)
}

// GenerateAdminToken signs a token granting admin access.
func (a *Authenticator) GenerateAdminToken(ttl time.Duration) (string, error) {
	return a.GenerateToken(AdminSubject, ttl)
}

// ParseToken verifies tokenString and returns its subject.
func (a *Authenticator) ParseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// CheckAdminSecret compares secret against the configured bcrypt hash.
func (a *Authenticator) CheckAdminSecret(secret string) error {
	if len(a.adminHash) == 0 || secret == "" {
		return ErrInvalidSecret
	}
	if err := bcrypt.CompareHashAndPassword(a.adminHash, []byte(secret)); err != nil {
		return ErrInvalidSecret
	}
	return nil
}

// GenerateToken signs an HS256 token with sub, iat and exp claims.
func GenerateToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", eris.New("auth: empty jwt secret")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", eris.Wrap(err, "auth: sign token")
	}
	return signed, nil
}

// HashSecret returns the bcrypt hash to configure as auth.admin_secret_hash.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", eris.Wrap(err, "auth: hash secret")
	}
	return string(hash), nil
}
