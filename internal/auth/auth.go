package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/merci1994dz/appdreamer-creator/internal/config"
	"github.com/merci1994dz/appdreamer-creator/internal/storage"
)

// ErrUnknownSource is returned for credentials of a source that is not configured.
var ErrUnknownSource = errors.New("auth: unknown source")

// TokenStore persists keyring references for source credentials.
type TokenStore interface {
	UpsertTokenRef(ctx context.Context, ref *storage.TokenRef) error
	GetTokenRef(ctx context.Context, source string) (*storage.TokenRef, error)
	DeleteTokenRef(ctx context.Context, source string) error
}

// Service keeps per-source credentials in the system keyring.
type Service struct {
	logger  *zap.Logger
	store   TokenStore
	krSvc   string
	sources map[string]config.Source

	mu     sync.Mutex
	tokens map[string]*oauth2.Token
}

// NewService constructs the auth service.
func NewService(logger *zap.Logger, cfg *config.Config, store TokenStore) (*Service, error) {
	if logger == nil {
		return nil, errors.New("auth: logger is required")
	}
	if cfg == nil {
		return nil, errors.New("auth: config is required")
	}
	if store == nil {
		return nil, errors.New("auth: storage is required")
	}

	krSvc := cfg.AppName
	if krSvc == "" {
		krSvc = "tvsync"
	}
	sources := make(map[string]config.Source, len(cfg.Sources))
	for _, src := range cfg.Sources {
		sources[src.Name] = src
	}
	logger.Info("auth service initialized", zap.Int("sources", len(sources)))
	return &Service{
		logger:  logger,
		store:   store,
		krSvc:   krSvc,
		sources: sources,
		tokens:  make(map[string]*oauth2.Token),
	}, nil
}

// SetToken stores a credential for source. An empty token type defaults to Bearer.
func (s *Service) SetToken(ctx context.Context, source string, tok *oauth2.Token) error {
	if _, ok := s.sources[source]; !ok {
		return ErrUnknownSource
	}
	if tok == nil || tok.AccessToken == "" {
		return errors.New("auth: access token is required")
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	if err := s.save(ctx, source, tok); err != nil {
		return err
	}
	s.logger.Info("source credential stored", zap.String("source", source))
	return nil
}

// DeleteToken removes the credential of source.
func (s *Service) DeleteToken(ctx context.Context, source string) error {
	if source == "" {
		return errors.New("auth: source is required")
	}
	if err := keyring.Delete(s.krSvc, source); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	if err := s.store.DeleteTokenRef(ctx, source); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.tokens, source)
	s.mu.Unlock()
	return nil
}

// Token returns the credential for source, or nil when none is stored.
// Expired credentials are refreshed when the source has a token endpoint.
func (s *Service) Token(ctx context.Context, source string) (*oauth2.Token, error) {
	s.mu.Lock()
	tok := s.tokens[source]
	s.mu.Unlock()

	if tok == nil {
		ref, err := s.store.GetTokenRef(ctx, source)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			return nil, nil
		}
		raw, err := keyring.Get(s.krSvc, ref.KeyID)
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		tok = &oauth2.Token{}
		if err := json.Unmarshal([]byte(raw), tok); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.tokens[source] = tok
		s.mu.Unlock()
	}

	if tok.Valid() {
		return tok, nil
	}
	return s.refresh(ctx, source, tok)
}

func (s *Service) refresh(ctx context.Context, source string, tok *oauth2.Token) (*oauth2.Token, error) {
	src := s.sources[source]
	if tok.RefreshToken == "" || src.TokenURL == "" {
		return nil, errors.New("auth: credential expired for " + source)
	}
	oauthCfg := &oauth2.Config{
		ClientID: src.ClientID,
		Endpoint: oauth2.Endpoint{TokenURL: src.TokenURL},
	}
	newToken, err := oauthCfg.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, source, newToken); err != nil {
		s.logger.Warn("token ref update failed", zap.String("source", source), zap.Error(err))
	}
	return newToken, nil
}

func (s *Service) save(ctx context.Context, source string, tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	ref := storage.TokenRef{
		Source:    source,
		KeyID:     source,
		TokenType: strings.ToLower(tok.Type()),
		Expiry:    tok.Expiry,
		UpdatedAt: time.Now(),
	}
	if err := s.store.UpsertTokenRef(ctx, &ref); err != nil {
		return err
	}
	if err := keyring.Set(s.krSvc, source, string(raw)); err != nil {
		_ = s.store.DeleteTokenRef(ctx, source)
		return err
	}
	s.mu.Lock()
	s.tokens[source] = tok
	s.mu.Unlock()
	return nil
}
