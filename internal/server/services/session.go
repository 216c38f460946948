package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/wxcounter/internal/common"
	"github.com/dmitrijs2005/wxcounter/internal/cryptox"
	"github.com/dmitrijs2005/wxcounter/internal/server/auth"
	"github.com/dmitrijs2005/wxcounter/internal/server/config"
	"github.com/dmitrijs2005/wxcounter/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/wxcounter/internal/server/wechat"
)

// Exchanger trades a one-time login code for the caller's external identity.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*wechat.Session, error)
}

// SessionService turns a login code into a signed access token bound to the
// internal user id.
type SessionService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	exchanger                   Exchanger
	sealer                      *cryptox.Sealer
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, ex Exchanger, cfg *config.Config) (*SessionService, error) {
	sealer, err := cryptox.NewSealer(cfg.SessionSealingSecret())
	if err != nil {
		return nil, fmt.Errorf("session sealer: %w", err)
	}

	return &SessionService{
		db:                          db,
		repomanager:                 m,
		exchanger:                   ex,
		sealer:                      sealer,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}, nil
}

// Login exchanges code, records the user on first sight and returns a fresh
// token. An empty code fails with ErrMissingCredentials before any network
// call; a failed or subject-less exchange fails with ErrWrongCredentials.
func (s *SessionService) Login(ctx context.Context, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", common.ErrMissingCredentials
	}

	sess, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrWrongCredentials, err)
	}
	if sess == nil || sess.OpenID == "" {
		return "", common.ErrWrongCredentials
	}

	sealed, err := s.sealer.Seal([]byte(sess.SessionKey), []byte(sess.OpenID))
	if err != nil {
		return "", fmt.Errorf("error sealing session key: %w", err)
	}

	user, err := s.repomanager.Users(s.db).Upsert(ctx, sess.OpenID, sealed)
	if err != nil {
		return "", fmt.Errorf("error saving user: %w", err)
	}

	return auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
}
