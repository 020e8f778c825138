package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"go.uber.org/zap"

	"github.com/merci1994dz/appdreamer-creator/internal/catalog"
	"github.com/merci1994dz/appdreamer-creator/internal/storage"
)

// DefaultFetchTimeout bounds a single catalog download.
const DefaultFetchTimeout = 45 * time.Second

// ErrNoSources is returned when no remote source is configured.
var ErrNoSources = errors.New("sync: no sources configured")

// CatalogStore is the cache the executor and the local fallback write into.
type CatalogStore interface {
	ReplaceChannels(ctx context.Context, channels []catalog.Channel, state *storage.SyncState) error
	CountChannels(ctx context.Context) (int, error)
	GetSyncState(ctx context.Context) (*storage.SyncState, error)
	RecordSyncError(ctx context.Context, msg string) error
}

// ExecutorOptions configures an HTTPExecutor.
type ExecutorOptions struct {
	SnapshotPath string
	Timeout      time.Duration
	Retries      int
	Tokens       TokenProvider
}

// HTTPExecutor downloads the catalog from remote sources and merges it into the cache.
type HTTPExecutor struct {
	logger       *zap.Logger
	sources      []Source
	store        CatalogStore
	client       *req.Client
	snapshotPath string
	tokens       TokenProvider
}

// NewHTTPExecutor constructs an executor over sources.
func NewHTTPExecutor(logger *zap.Logger, sources []Source, store CatalogStore, opts ExecutorOptions) (*HTTPExecutor, error) {
	if logger == nil {
		return nil, errors.New("sync: logger is required")
	}
	if store == nil {
		return nil, errors.New("sync: catalog store is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPExecutor{
		logger:       logger,
		sources:      append([]Source(nil), sources...),
		store:        store,
		client:       newHTTPClient(timeout, opts.Retries),
		snapshotPath: opts.SnapshotPath,
		tokens:       opts.Tokens,
	}, nil
}

// Execute fetches the catalog, trying src first when given and then the
// remaining sources in priority order. It reports true when the cache was
// replaced and false when the fetched catalog matched the cache and force
// was not set. Transport and parse failures of every source are returned.
func (e *HTTPExecutor) Execute(ctx context.Context, src *Source, force bool, params Params) (bool, error) {
	order := e.ordered(src)
	if len(order) == 0 {
		return false, ErrNoSources
	}

	var errs []error
	for _, s := range order {
		channels, err := e.fetch(ctx, s, params)
		if err != nil {
			e.logger.Warn("catalog fetch failed", zap.String("source", s.Name), zap.Error(err))
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return e.merge(ctx, s, channels, force)
	}

	err := errors.Join(errs...)
	if recErr := e.store.RecordSyncError(ctx, err.Error()); recErr != nil {
		e.logger.Debug("record sync error failed", zap.Error(recErr))
	}
	return false, err
}

func (e *HTTPExecutor) ordered(src *Source) []Source {
	if src == nil {
		return e.sources
	}
	out := make([]Source, 0, len(e.sources)+1)
	out = append(out, *src)
	for _, s := range e.sources {
		if s.URL == src.URL {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (e *HTTPExecutor) fetch(ctx context.Context, src Source, params Params) ([]catalog.Channel, error) {
	r := e.client.R().SetContext(ctx)
	authorize(ctx, r, e.tokens, src)
	resp, err := r.Get(withQuery(src.URL, params.Query()))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, src.Name, err)
	}
	if resp.IsErrorState() {
		return nil, fmt.Errorf("%w: %s: HTTP %d", ErrSourceUnavailable, src.Name, resp.GetStatusCode())
	}
	channels, err := catalog.Decode(resp.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name, err)
	}
	return channels, nil
}

func (e *HTTPExecutor) merge(ctx context.Context, src Source, channels []catalog.Channel, force bool) (bool, error) {
	sum := catalog.Checksum(channels)
	if !force {
		state, err := e.store.GetSyncState(ctx)
		if err != nil {
			return false, err
		}
		count, err := e.store.CountChannels(ctx)
		if err != nil {
			return false, err
		}
		if state != nil && state.Checksum == sum && count > 0 {
			e.logger.Info("catalog unchanged", zap.String("source", src.Name), zap.Int("channels", count))
			return false, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}
	state := &storage.SyncState{Origin: storage.OriginRemote, Source: src.Name, Checksum: sum}
	if err := e.store.ReplaceChannels(ctx, channels, state); err != nil {
		return false, fmt.Errorf("merge catalog from %s: %w", src.Name, err)
	}
	if e.snapshotPath != "" {
		if err := catalog.WriteSnapshot(e.snapshotPath, catalog.NewSnapshot(src.Name, channels)); err != nil {
			e.logger.Warn("snapshot write failed", zap.String("path", e.snapshotPath), zap.Error(err))
		}
	}
	e.logger.Info("catalog updated", zap.String("source", src.Name), zap.Int("channels", len(channels)))
	return true, nil
}

// withQuery appends a raw query to rawURL, keeping any query it already has.
func withQuery(rawURL, query string) string {
	if query == "" {
		return rawURL
	}
	fragment := ""
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		rawURL, fragment = rawURL[:i], rawURL[i:]
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
		if strings.HasSuffix(rawURL, "?") || strings.HasSuffix(rawURL, "&") {
			sep = ""
		}
	}
	return rawURL + sep + query + fragment
}
