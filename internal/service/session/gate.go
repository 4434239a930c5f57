// Package session реализует вход по телефону и одноразовому коду, выход
// и проверку токена сессии для транспортных слоёв.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/storage/snapshot"
)

const persistTimeout = 5 * time.Second

// LoginResult — ответ на попытку входа.
// RequiresOTP=true означает, что телефон известен и нужно ввести код; сессия не создана.
type LoginResult struct {
	RequiresOTP bool         `json:"requiresOtp"`
	User        *domain.User `json:"user,omitempty"`
	Token       string       `json:"token,omitempty"`
	ExpiresAt   time.Time    `json:"expiresAt,omitempty"`
}

// Gate хранит текущую сессию и выпускает токены.
//
// Состояние сессии одно на процесс; Authenticate при этом проверяет любой
// не отозванный токен, выпущенный этим Gate.
type Gate struct {
	directory domain.Directory
	tokens    *TokenIssuer
	store     domain.BlobStore
	logger    *log.Entry
	now       func() time.Time

	mu      sync.RWMutex
	current domain.Session
	revoked map[string]time.Time
}

// Option настраивает Gate.
type Option func(*gateOptions)

type gateOptions struct {
	store    domain.BlobStore
	logger   *log.Entry
	now      func() time.Time
	tokenTTL time.Duration
}

// WithStore включает сохранение сессии в blob под ключом watermate-auth.
func WithStore(store domain.BlobStore) Option {
	return func(o *gateOptions) {
		o.store = store
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(o *gateOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(o *gateOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTokenTTL задаёт срок жизни токена.
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *gateOptions) {
		o.tokenTTL = ttl
	}
}

// NewGate создаёт Gate. secret подписывает токены сессии.
func NewGate(directory domain.Directory, secret []byte, opts ...Option) (*Gate, error) {
	o := gateOptions{
		logger: log.WithField("component", "session"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	tokens, err := NewTokenIssuer(secret, o.tokenTTL, o.now)
	if err != nil {
		return nil, err
	}

	return &Gate{
		directory: directory,
		tokens:    tokens,
		store:     o.store,
		logger:    o.logger,
		now:       o.now,
		revoked:   make(map[string]time.Time),
	}, nil
}

// Login ищет пользователя по телефону. Пустой код — запрос кода (RequiresOTP);
// код из ровно четырёх цифр открывает сессию.
func (g *Gate) Login(ctx context.Context, phone, otp string) (LoginResult, error) {
	user, err := g.directory.FindByPhone(phone)
	if err != nil {
		g.logger.WithField("phone", maskPhone(phone)).Info("login for unknown phone")
		return LoginResult{}, err
	}

	if otp == "" {
		return LoginResult{RequiresOTP: true}, nil
	}
	return g.establish(ctx, user, otp)
}

// VerifyOTP проверяет код для телефона и открывает сессию.
func (g *Gate) VerifyOTP(ctx context.Context, phone, otp string) (LoginResult, error) {
	user, err := g.directory.FindByPhone(phone)
	if err != nil {
		return LoginResult{}, err
	}
	return g.establish(ctx, user, otp)
}

// Logout закрывает текущую сессию. Вызов без активной сессии не ошибка.
func (g *Gate) Logout(ctx context.Context) error {
	g.mu.Lock()
	if g.current.Token != "" {
		if claims, err := g.tokens.Parse(g.current.Token); err == nil {
			g.revoked[claims.ID] = claims.ExpiresAt.Time
		}
	}
	userID := ""
	if g.current.User != nil {
		userID = g.current.User.ID
	}
	g.current = domain.Session{}
	g.pruneRevokedLocked()
	g.mu.Unlock()

	g.logger.WithField("user_id", userID).Info("logged out")
	g.persist(ctx)
	return nil
}

// Revoke отзывает конкретный токен. Если это токен текущей сессии, сессия закрывается.
// Уже невалидный токен отзывать нечего, это не ошибка.
func (g *Gate) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	claims, err := g.tokens.Parse(token)
	if err != nil {
		return nil
	}

	g.mu.Lock()
	g.revoked[claims.ID] = claims.ExpiresAt.Time
	wasCurrent := g.current.Token == token
	if wasCurrent {
		g.current = domain.Session{}
	}
	g.pruneRevokedLocked()
	g.mu.Unlock()

	g.logger.WithField("user_id", claims.Subject).Info("session token revoked")
	if wasCurrent {
		g.persist(ctx)
	}
	return nil
}

// Current возвращает копию текущей сессии.
func (g *Gate) Current() domain.Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return copySession(g.current)
}

// Authenticate проверяет токен и возвращает его владельца.
func (g *Gate) Authenticate(token string) (domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, fmt.Errorf("%w: empty token", domain.ErrSessionTokenInvalid)
	}

	claims, err := g.tokens.Parse(token)
	if err != nil {
		return domain.User{}, err
	}

	g.mu.RLock()
	_, revoked := g.revoked[claims.ID]
	g.mu.RUnlock()
	if revoked {
		return domain.User{}, fmt.Errorf("%w: token revoked", domain.ErrSessionTokenInvalid)
	}

	user, err := g.directory.GetUser(claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, fmt.Errorf("%w: unknown user", domain.ErrSessionTokenInvalid)
		}
		return domain.User{}, domain.OperationFailed("resolve session user", err)
	}
	return user, nil
}

// Restore поднимает сессию из blob. Просроченный или чужой токен даёт пустую сессию.
func (g *Gate) Restore(ctx context.Context) error {
	if g.store == nil {
		return nil
	}

	state, found, err := snapshot.Load[snapshot.AuthState](ctx, g.store, snapshot.KeyAuth)
	if err != nil {
		return err
	}
	if !found || !state.IsAuthenticated || state.User == nil {
		return nil
	}

	claims, err := g.tokens.Parse(state.Token)
	if err != nil || claims.Subject != state.User.ID {
		g.logger.WithError(err).Warn("stored session discarded")
		return nil
	}

	user := *state.User
	g.mu.Lock()
	g.current = domain.Session{
		User:            &user,
		IsAuthenticated: true,
		Token:           state.Token,
		IssuedAt:        claims.IssuedAt.Time,
	}
	g.mu.Unlock()

	g.logger.WithField("user_id", user.ID).Info("session restored")
	return nil
}

func (g *Gate) establish(ctx context.Context, user domain.User, otp string) (LoginResult, error) {
	if !validOTP(otp) {
		return LoginResult{}, domain.ErrOTPInvalid
	}

	token, claims, err := g.tokens.Issue(user)
	if err != nil {
		return LoginResult{}, domain.OperationFailed("issue session token", err)
	}

	g.mu.Lock()
	g.current = domain.Session{
		User:            &user,
		IsAuthenticated: true,
		Token:           token,
		IssuedAt:        claims.IssuedAt.Time,
	}
	g.mu.Unlock()

	g.logger.WithFields(log.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("session established")
	g.persist(ctx)

	result := user
	return LoginResult{User: &result, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// persist пишет сессию в blob. Ошибка только логируется: сессия в памяти остаётся.
func (g *Gate) persist(ctx context.Context) {
	if g.store == nil {
		return
	}

	current := g.Current()
	state := snapshot.AuthState{
		User:            current.User,
		IsAuthenticated: current.IsAuthenticated,
		Token:           current.Token,
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := snapshot.Save(ctx, g.store, snapshot.KeyAuth, state); err != nil {
		g.logger.WithError(err).Warn("failed to persist session")
	}
}

func (g *Gate) pruneRevokedLocked() {
	now := g.now()
	for id, expires := range g.revoked {
		if !expires.After(now) {
			delete(g.revoked, id)
		}
	}
}

func validOTP(otp string) bool {
	if len(otp) != 4 {
		return false
	}
	for _, r := range otp {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func copySession(s domain.Session) domain.Session {
	if s.User != nil {
		u := *s.User
		if u.Location != nil {
			loc := *u.Location
			u.Location = &loc
		}
		s.User = &u
	}
	return s
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
