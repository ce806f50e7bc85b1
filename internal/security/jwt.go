package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeParticipant = "participant"
	TokenTypeAdmin       = "admin"
)

type Claims struct {
	TokenType    string `json:"token_type"`
	SessionID    string `json:"sid,omitempty"`
	EntryTokenID string `json:"etid,omitempty"`
	DisplayName  string `json:"name,omitempty"`
	Anonymous    bool   `json:"anon,omitempty"`
	Username     string `json:"username,omitempty"`
	Role         string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ParticipantIdentity is the set of facts a participant credential carries.
type ParticipantIdentity struct {
	ParticipantID string
	SessionID     string
	EntryTokenID  string
	DisplayName   string
	Anonymous     bool
}

type JWTManager struct {
	issuer            string
	audience          string
	participantSecret []byte
	adminSecret       []byte
}

func NewJWTManager(issuer, audience, participantSecret, adminSecret string) *JWTManager {
	return &JWTManager{
		issuer:            issuer,
		audience:          audience,
		participantSecret: []byte(participantSecret),
		adminSecret:       []byte(adminSecret),
	}
}

func (m *JWTManager) SignParticipantToken(id ParticipantIdentity, ttl time.Duration) (string, error) {
	claims := Claims{
		TokenType:        TokenTypeParticipant,
		SessionID:        id.SessionID,
		EntryTokenID:     id.EntryTokenID,
		DisplayName:      id.DisplayName,
		Anonymous:        id.Anonymous,
		RegisteredClaims: m.registered(id.ParticipantID, ttl),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.participantSecret)
}

func (m *JWTManager) SignAdminToken(userID, username, role string, ttl time.Duration) (string, error) {
	claims := Claims{
		TokenType:        TokenTypeAdmin,
		Username:         username,
		Role:             role,
		RegisteredClaims: m.registered(userID, ttl),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.adminSecret)
}

func (m *JWTManager) ParseParticipantToken(raw string) (*Claims, error) {
	claims, err := m.parse(raw, m.participantSecret, TokenTypeParticipant)
	if err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, errors.New("participant token missing session")
	}
	return claims, nil
}

func (m *JWTManager) ParseAdminToken(raw string) (*Claims, error) {
	return m.parse(raw, m.adminSecret, TokenTypeAdmin)
}

func (m *JWTManager) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   subject,
		Audience:  []string{m.audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
}

func (m *JWTManager) parse(raw string, secret []byte, tokenType string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithAudience(m.audience))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("unexpected token type: %s", claims.TokenType)
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing subject")
	}
	return claims, nil
}
