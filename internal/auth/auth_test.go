package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/merci1994dz/appdreamer-creator/internal/config"
	"github.com/merci1994dz/appdreamer-creator/internal/storage"
)

func newTestStore(t *testing.T) *storage.Storage {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{DatabasePath: filepath.Join(dir, "auth.db")}
	store, err := storage.NewStorage(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func newTestService(t *testing.T, sources ...config.Source) (*Service, *storage.Storage) {
	t.Helper()
	keyring.MockInit()
	store := newTestStore(t)
	svc, err := NewService(zap.NewNop(), &config.Config{AppName: "tvsync-test", Sources: sources}, store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestTokenRoundTrip(t *testing.T) {
	svc, store := newTestService(t, config.Source{Name: "primary", URL: "https://a.example"})
	ctx := t.Context()

	tok, err := svc.Token(ctx, "primary")
	if err != nil || tok != nil {
		t.Fatalf("expected no credential, got %#v %v", tok, err)
	}

	if err := svc.SetToken(ctx, "primary", &oauth2.Token{AccessToken: "secret"}); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	ref, err := store.GetTokenRef(ctx, "primary")
	if err != nil || ref == nil || ref.TokenType != "bearer" {
		t.Fatalf("unexpected token ref %#v %v", ref, err)
	}

	// a fresh service reads the credential back from the keyring
	fresh, err := NewService(zap.NewNop(), &config.Config{AppName: "tvsync-test"}, store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	tok, err = fresh.Token(ctx, "primary")
	if err != nil || tok == nil || tok.AccessToken != "secret" {
		t.Fatalf("unexpected token %#v %v", tok, err)
	}

	if err := svc.DeleteToken(ctx, "primary"); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if tok, err := svc.Token(ctx, "primary"); err != nil || tok != nil {
		t.Fatalf("expected credential removed, got %#v %v", tok, err)
	}
}

func TestSetTokenUnknownSource(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.SetToken(t.Context(), "nope", &oauth2.Token{AccessToken: "x"}); err != ErrUnknownSource {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
}

func TestExpiredTokenRefreshes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("refresh_token") != "refresh-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	svc, _ := newTestService(t, config.Source{Name: "primary", TokenURL: srv.URL, ClientID: "tv"})
	ctx := t.Context()
	expired := &oauth2.Token{AccessToken: "stale", RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Hour)}
	if err := svc.SetToken(ctx, "primary", expired); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	tok, err := svc.Token(ctx, "primary")
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "fresh" || !tok.Valid() {
		t.Fatalf("expected refreshed token, got %#v", tok)
	}
}

func TestExpiredTokenWithoutEndpoint(t *testing.T) {
	svc, _ := newTestService(t, config.Source{Name: "primary"})
	ctx := t.Context()
	expired := &oauth2.Token{AccessToken: "stale", Expiry: time.Now().Add(-time.Hour)}
	if err := svc.SetToken(ctx, "primary", expired); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if _, err := svc.Token(ctx, "primary"); err == nil {
		t.Fatal("expected error for expired credential")
	}
}
