package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/pos-backend/api/responses"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/pos-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	checkoutIdempotencyTTL = 7 * 24 * time.Hour
	// inFlightTTL bounds how long a crashed request can block its key.
	inFlightTTL       = 2 * time.Minute
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
)

type idempotencyRule struct {
	method   string
	pattern  []string
	ttl      time.Duration
	optional bool
}

func rule(method, pattern string, ttl time.Duration, optional bool) idempotencyRule {
	return idempotencyRule{method: method, pattern: splitPath(pattern), ttl: ttl, optional: optional}
}

var idempotencyRules = []idempotencyRule{
	rule(http.MethodPost, "/api/catalog/products", defaultIdempotencyTTL, false),
	rule(http.MethodPost, "/api/inventory/movements", defaultIdempotencyTTL, false),
	// the checkout key doubles as the commit token, so it stays optional here
	rule(http.MethodPost, "/api/terminals/*/checkout", checkoutIdempotencyTTL, true),
}

// storedResponse is what lives under the key. Pending marks a request that
// is still running; Body is base64 through encoding/json.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes the listed POST routes safe to retry. The first request
// with a key claims it, runs, and stores its response; later requests with
// the same key and body get that response back, a different body is a 409,
// and a retry while the first is still running is a 409 with Retry-After.
// 429 and 503 answers release the key so the client can try again.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := matchRule(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				if rule.optional {
					next.ServeHTTP(w, r)
					return
				}
				fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(scopeFor(r), clientKey)

			claimed, err := claim(ctx, store, key, hash)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				prior, err := load(ctx, store, key)
				switch {
				case err != nil:
					fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
				case prior == nil:
					// expired between claim and load; let the client retry
					w.Header().Set("Retry-After", "1")
					fail(pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key busy"))
				case prior.RequestHash != hash:
					fail(pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
				case prior.Pending:
					w.Header().Set("Retry-After", "1")
					fail(pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
				default:
					replay(w, prior)
				}
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			finished := false
			defer func() {
				if !finished {
					// handler panicked; free the key before the recoverer answers
					_ = store.Del(context.WithoutCancel(ctx), key)
				}
			}()
			next.ServeHTTP(capture, r)
			finished = true

			if capture.status == http.StatusTooManyRequests || capture.status == http.StatusServiceUnavailable {
				logError(ctx, logg, "release idempotency key", store.Del(context.WithoutCancel(ctx), key))
				return
			}
			final, err := json.Marshal(storedResponse{
				RequestHash: hash,
				Status:      capture.statusOrOK(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err != nil {
				logError(ctx, logg, "marshal idempotency record", err)
				return
			}
			logError(ctx, logg, "persist idempotency record", store.Set(context.WithoutCancel(ctx), key, string(final), rule.ttl))
		})
	}
}

func claim(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string) (bool, error) {
	pending, err := json.Marshal(storedResponse{Pending: true, RequestHash: hash})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(pending), inFlightTTL)
}

func load(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, pkgredis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec storedResponse
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func replay(w http.ResponseWriter, rec *storedResponse) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

// scopeFor keys records per user and per concrete path, so the same client
// key on two terminals never collides.
func scopeFor(r *http.Request) string {
	return strings.Join([]string{"http", IdentityFromContext(r.Context()).UserID.String(), r.Method, r.URL.Path}, "|")
}

func matchRule(method, path string) (idempotencyRule, bool) {
	got := splitPath(path)
	for _, rule := range idempotencyRules {
		if rule.method == method && segmentsMatch(rule.pattern, got) {
			return rule, true
		}
	}
	return idempotencyRule{}, false
}

func splitPath(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}

// segmentsMatch compares segment by segment; "*" matches one non-empty segment.
func segmentsMatch(pattern, got []string) bool {
	if len(pattern) != len(got) {
		return false
	}
	for i, seg := range pattern {
		if got[i] == "" || (seg != "*" && seg != got[i]) {
			return false
		}
	}
	return true
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusOrOK() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
