package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

const (
	tokenIssuer     = "watermate"
	defaultTokenTTL = 24 * time.Hour
)

// Claims — содержимое токена сессии.
type Claims struct {
	Role  domain.Role `json:"role"`
	Phone string      `json:"phone"`
	jwt.RegisteredClaims
}

// TokenIssuer подписывает и проверяет токены сессии (HS256).
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer создаёт issuer. Пустой секрет недопустим.
func NewTokenIssuer(secret []byte, ttl time.Duration, now func() time.Time) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("session token secret is empty")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: secret, ttl: ttl, now: now}, nil
}

// Issue выпускает токен для пользователя.
func (i *TokenIssuer) Issue(user domain.User) (string, Claims, error) {
	issuedAt := i.now().UTC().Truncate(time.Second)
	claims := Claims{
		Role:  user.Role,
		Phone: user.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, claims, nil
}

// Parse проверяет подпись, издателя и срок действия токена.
func (i *TokenIssuer) Parse(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", domain.ErrSessionTokenInvalid, err)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", domain.ErrSessionTokenInvalid)
	}
	return claims, nil
}
