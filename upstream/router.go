// upstream/router.go
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GPT-Gradient/xynergy-core-sub001/breaker"
	"github.com/GPT-Gradient/xynergy-core-sub001/cache"
	gw_errors "github.com/GPT-Gradient/xynergy-core-sub001/errors"
	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
)

// Backend describes one upstream microservice, addressed by logical name.
type Backend struct {
	Name      string
	BaseURL   string
	Timeout   time.Duration
	CacheTTL  time.Duration
	Cacheable bool
}

// CallOptions carries the per-call knobs for Router.Call.
type CallOptions struct {
	Method    string
	Body      []byte
	Header    http.Header
	Query     url.Values
	Cacheable bool
	Scope     string // tenant isolation component of the cache key
	TTL       time.Duration
	Tags      []string
	Timeout   time.Duration // overrides the backend default when set
}

// Response is the uniform upstream call result.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	FromCache bool
}

// cachedResponse is the serialized form stored in the response cache.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// statusError marks an upstream 5xx so the breaker records it as a failure.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.status)
}

// Router is the orchestration point for upstream calls: cache check, then a
// breaker-guarded HTTP call, then cache population and stats recording.
type Router struct {
	backends map[string]Backend
	breakers *breaker.Registry
	cache    cache.Store
	client   *http.Client
	stats    *stats
}

func NewRouter(backends map[string]Backend, breakers *breaker.Registry, store cache.Store) *Router {
	return &Router{
		backends: backends,
		breakers: breakers,
		cache:    store,
		// Timeouts are applied per call through the request context
		client: &http.Client{},
		stats:  newStats(),
	}
}

// Backend looks up a configured backend by logical name.
func (r *Router) Backend(name string) (Backend, bool) {
	b, ok := r.backends[name]
	return b, ok
}

// Breakers exposes the breaker registry for health reporting.
func (r *Router) Breakers() *breaker.Registry {
	return r.breakers
}

// Stats reports per-backend call counters.
func (r *Router) Stats() map[string]BackendStats {
	return r.stats.snapshot()
}

// Call routes one request to the named backend. Cacheable safe reads are
// served from cache without touching the breaker; on a miss the call goes
// through the breaker and a success populates the cache before returning.
func (r *Router) Call(ctx context.Context, backendName, path string, opts CallOptions) (*Response, error) {
	backend, ok := r.backends[backendName]
	if !ok {
		return nil, gw_errors.NotFound(fmt.Sprintf("unknown backend %q", backendName))
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	isRead := method == http.MethodGet || method == http.MethodHead
	cacheable := opts.Cacheable && isRead

	r.stats.request(backendName)

	var key string
	if cacheable {
		key = CacheKey(backendName, path, opts.Scope, opts.Query, opts.Body)
		if resp := r.fromCache(ctx, key); resp != nil {
			r.stats.cacheHit(backendName)
			return resp, nil
		}
	}

	var resp *Response
	err := r.breakers.Execute(ctx, backendName, func(ctx context.Context) error {
		var callErr error
		resp, callErr = r.do(ctx, backend, method, path, opts, isRead)
		return callErr
	})
	if err != nil {
		r.stats.failure(backendName)
		return nil, r.translate(backendName, err)
	}

	if cacheable && resp.Status >= 200 && resp.Status < 300 {
		r.populate(ctx, backendName, key, resp, opts)
	}
	return resp, nil
}

// Invalidate removes every cached response carrying the given tag.
func (r *Router) Invalidate(ctx context.Context, tag string) (int, error) {
	return r.cache.InvalidateTag(ctx, tag)
}

func (r *Router) fromCache(ctx context.Context, key string) *Response {
	value, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		// Cache-store trouble degrades silently to a miss
		logger.Warn("Cache read failed, treating as miss", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var cached cachedResponse
	if err := json.Unmarshal(value, &cached); err != nil {
		logger.Warn("Corrupt cache entry, treating as miss", zap.Error(err))
		return nil
	}
	header := http.Header{}
	if cached.ContentType != "" {
		header.Set("Content-Type", cached.ContentType)
	}
	return &Response{Status: cached.Status, Header: header, Body: cached.Body, FromCache: true}
}

func (r *Router) populate(ctx context.Context, backendName, key string, resp *Response, opts CallOptions) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = r.backends[backendName].CacheTTL
	}
	if ttl <= 0 {
		return
	}
	value, err := json.Marshal(cachedResponse{
		Status:      resp.Status,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
	})
	if err != nil {
		return
	}
	tags := append([]string{"backend:" + backendName}, opts.Tags...)
	if err := r.cache.Set(ctx, key, value, ttl, tags...); err != nil {
		logger.Warn("Cache population failed",
			zap.String("backend", backendName),
			zap.Error(err))
	}
}

// do performs the HTTP call, retrying idempotent reads at most once and only
// on network-level failure. Received status codes are never retried.
func (r *Router) do(ctx context.Context, backend Backend, method, path string, opts CallOptions, isRead bool) (*Response, error) {
	resp, err := r.attempt(ctx, backend, method, path, opts, isRead)
	if err != nil && isRead && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		r.stats.retry(backend.Name)
		logger.Debug("Retrying idempotent read after network failure",
			zap.String("backend", backend.Name),
			zap.String("path", path),
			zap.Error(err))
		resp, err = r.attempt(ctx, backend, method, path, opts, isRead)
	}
	if err != nil {
		return nil, err
	}
	if resp.Status >= 500 {
		return nil, &statusError{status: resp.Status}
	}
	return resp, nil
}

func (r *Router) attempt(ctx context.Context, backend Backend, method, path string, opts CallOptions, isRead bool) (*Response, error) {
	if !isRead {
		// Client disconnect must not abort an in-flight write mid-side-effect
		ctx = context.WithoutCancel(ctx)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = backend.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := strings.TrimSuffix(backend.BaseURL, "/") + path
	if encoded := opts.Query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	var body io.Reader
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	for name, values := range opts.Header {
		req.Header[name] = values
	}

	res, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}
	return &Response{Status: res.StatusCode, Header: res.Header.Clone(), Body: payload}, nil
}

func (r *Router) translate(backendName string, err error) error {
	state := r.breakers.State(backendName).String()
	switch {
	case errors.Is(err, breaker.ErrOpen):
		return gw_errors.BackendUnavailable(backendName, state, err)
	case errors.Is(err, context.DeadlineExceeded):
		return gw_errors.GatewayTimeout(backendName, err)
	default:
		return gw_errors.BackendUnavailable(backendName, state, err)
	}
}
