package sync

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"golang.org/x/oauth2"
)

// UserAgent is sent with every probe and fetch.
var UserAgent = fmt.Sprintf("tvsync (%s; %s)", runtime.GOOS, runtime.GOARCH)

// TokenProvider returns the credential for a source, or nil when the source
// is public.
type TokenProvider interface {
	Token(ctx context.Context, source string) (*oauth2.Token, error)
}

func newHTTPClient(timeout time.Duration, retries int) *req.Client {
	c := req.C().
		SetTimeout(timeout).
		SetUserAgent(UserAgent).
		SetCommonHeader("Cache-Control", "no-cache").
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
	if retries > 0 {
		c.SetCommonRetryCount(retries).
			SetCommonRetryFixedInterval(500 * time.Millisecond)
	}
	return c
}

func authorize(ctx context.Context, r *req.Request, tokens TokenProvider, src Source) {
	if tokens == nil {
		return
	}
	tok, err := tokens.Token(ctx, src.Name)
	if err != nil || tok == nil || !tok.Valid() {
		return
	}
	r.SetHeader("Authorization", tok.Type()+" "+tok.AccessToken)
}
