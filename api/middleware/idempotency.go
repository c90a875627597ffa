package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sibusisodube/canopay-backend/api/responses"
	pkgerrors "github.com/sibusisodube/canopay-backend/pkg/errors"
	"github.com/sibusisodube/canopay-backend/pkg/logger"
	pkgredis "github.com/sibusisodube/canopay-backend/pkg/redis"
)

// Payout creation moves money, so a replayed submission must return the
// recorded response for a week rather than reserving funds twice.
const payoutGuardTTL = 7 * 24 * time.Hour

const idempotencyHeader = "Idempotency-Key"

// storedSubmission is the recorded outcome of a guarded request, keyed by the
// caller's idempotency key. Digest pins the key to one request body.
type storedSubmission struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body"`
	Digest      string `json:"digest"`
}

// Idempotency replays recorded responses for guarded mutations. Requests on
// unguarded routes pass through untouched. A Redis outage fails the guarded
// request rather than letting a possible replay reach the handler.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if store == nil || !guardsPayoutRoute(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			submissionKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if submissionKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			digest := bodyDigest(body)
			key := store.IdempotencyKey(submissionScope(r), submissionKey)

			stored, err := loadSubmission(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if stored != nil {
				if stored.Digest != digest {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				stored.replay(w)
				return
			}

			recorder := &replayRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)

			if err := saveSubmission(ctx, store, key, recorder.submission(digest)); err != nil {
				// The response already went out; the next replay simply
				// re-executes and the payout service's own dedup holds.
				if logg != nil {
					logg.Error(ctx, "persist idempotency record", err)
				}
			}
		})
	}
}

func guardsPayoutRoute(method, path string) bool {
	return method == http.MethodPost &&
		strings.HasPrefix(path, "/api/v1/stores/") &&
		strings.HasSuffix(path, "/earnings/payouts")
}

// submissionScope namespaces the caller's key so two users, or the same user
// on two stores, never collide on a shared key value.
func submissionScope(r *http.Request) string {
	return strings.Join([]string{
		UserIDFromContext(r.Context()),
		StoreIDFromContext(r.Context()),
		r.Method,
		r.URL.Path,
	}, "|")
}

func loadSubmission(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedSubmission, error) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}
	var stored storedSubmission
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func saveSubmission(ctx context.Context, store pkgredis.IdempotencyStore, key string, stored storedSubmission) error {
	payload, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	_, err = store.SetNX(ctx, key, string(payload), payoutGuardTTL)
	return err
}

func (s *storedSubmission) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.WriteHeader(s.Status)
	if decoded, err := base64.StdEncoding.DecodeString(s.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

func bodyDigest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// replayRecorder mirrors the handler's response into a buffer so it can be
// stored for later replays.
type replayRecorder struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *replayRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *replayRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *replayRecorder) submission(digest string) storedSubmission {
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	return storedSubmission{
		Status:      status,
		ContentType: r.Header().Get("Content-Type"),
		Body:        base64.StdEncoding.EncodeToString(r.body.Bytes()),
		Digest:      digest,
	}
}
