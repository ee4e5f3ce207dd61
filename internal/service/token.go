package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("токен невалиден")

// TokenManager отвечает за выпуск и проверку JWT доступа.
// Роль в токен не пишется, её берут из справочника участников.
type TokenManager struct {
	accessSecret []byte
	accessTTL    time.Duration
	now          func() time.Time
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(accessSecret string, accessTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret: []byte(accessSecret),
		accessTTL:    accessTTL,
		now:          time.Now,
	}
}

// Issue выпускает access токен для участника.
func (m *TokenManager) Issue(actorID uuid.UUID) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   actorID.String(),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseAccess извлекает id участника из access токена.
func (m *TokenManager) ParseAccess(token string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.accessSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired(), jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	actorID, err := uuid.Parse(claims.Subject)
	if err != nil || actorID == uuid.Nil {
		return uuid.Nil, ErrInvalidToken
	}
	return actorID, nil
}
