package sync

import (
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// DefaultSkewThreshold is the drift tolerated before a skew parameter is sent.
const DefaultSkewThreshold = 30 * time.Second

// Params are the per-attempt query decorations sent with every catalog fetch.
type Params struct {
	CacheBuster string
	Skew        string
}

// Query joins the decorations into a raw query string without a leading '?'.
func (p Params) Query() string {
	if p.Skew == "" {
		return p.CacheBuster
	}
	return p.CacheBuster + "&" + p.Skew
}

// SkewTracker remembers the last reference time reported by a source and
// derives cache-busting and clock-skew parameters from it.
type SkewTracker struct {
	threshold time.Duration
	now       func() time.Time

	mu     sync.Mutex
	offset time.Duration
	seen   bool
}

// NewSkewTracker constructs a tracker. A non-positive threshold uses DefaultSkewThreshold.
func NewSkewTracker(threshold time.Duration) *SkewTracker {
	if threshold <= 0 {
		threshold = DefaultSkewThreshold
	}
	return &SkewTracker{threshold: threshold, now: time.Now}
}

// Observe records a server timestamp taken at local time local.
func (t *SkewTracker) Observe(server, local time.Time) {
	if server.IsZero() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.offset = server.Sub(local)
	t.seen = true
}

// Offset returns the last observed server-minus-client offset.
func (t *SkewTracker) Offset() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offset, t.seen
}

// BuildCacheBuster returns "_=<epoch-ms>&nocache=<token>".
func (t *SkewTracker) BuildCacheBuster() string {
	ms := t.now().UnixMilli()
	return "_=" + strconv.FormatInt(ms, 10) + "&nocache=" + randomToken()
}

// SkewProtectionParam returns "skew=<offset-ms>" when the observed drift
// exceeds the threshold, or "" otherwise.
func (t *SkewTracker) SkewProtectionParam() string {
	offset, ok := t.Offset()
	if !ok {
		return ""
	}
	drift := offset
	if drift < 0 {
		drift = -drift
	}
	if drift <= t.threshold {
		return ""
	}
	return "skew=" + strconv.FormatInt(offset.Milliseconds(), 10)
}

// Build returns fresh parameters for one attempt.
func (t *SkewTracker) Build() Params {
	return Params{CacheBuster: t.BuildCacheBuster(), Skew: t.SkewProtectionParam()}
}

func randomToken() string {
	//nolint:gosec // cache busting only needs uniqueness
	token := strconv.FormatUint(rand.Uint64(), 36)
	if len(token) > 13 {
		token = token[:13]
	}
	return token
}
