package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/novastack/service_layer/internal/errors"
	internalhttputil "github.com/novastack/service_layer/internal/httputil"
	"github.com/novastack/service_layer/pkg/logger"
)

const (
	// IdempotencyHeader is the request header clients use to make retries safe.
	IdempotencyHeader = "Idempotency-Key"
	// IdempotencyHitHeader is set on replayed responses.
	IdempotencyHitHeader = "X-Idempotency-Hit"

	maxIdempotencyKeyLength = 255
	idempotencyLockTTL      = time.Minute
)

// IdempotencyRecord is a stored response.
type IdempotencyRecord struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// IdempotencyStore persists responses by key. Get returns nil, nil when the
// key is unknown. Lock reports false when another request holds the key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Save(ctx context.Context, key string, rec IdempotencyRecord, ttl time.Duration) error
	Unlock(ctx context.Context, key string) error
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Keys are scoped to the caller and route. Responses with a 5xx status are
// not stored so the client can retry.
func Idempotency(store IdempotencyStore, ttl time.Duration, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewDefault("idempotency")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(raw) > maxIdempotencyKeyLength {
				internalhttputil.WriteError(w, r, errors.BadRequest("Idempotency-Key is too long"), false)
				return
			}

			ctx := r.Context()
			key := fmt.Sprintf("%s:%s:%s:%s", GetUserID(ctx), r.Method, r.URL.Path, raw)
			entry := log.WithContext(ctx).WithField("idempotency_key", raw)

			rec, err := store.Get(ctx, key)
			if err != nil {
				entry.WithError(err).Error("Failed to read idempotency key")
				next.ServeHTTP(w, r)
				return
			}
			if rec != nil {
				entry.Info("Idempotency hit, replaying stored response")
				replay(w, rec)
				return
			}

			locked, err := store.Lock(ctx, key, idempotencyLockTTL)
			if err != nil {
				entry.WithError(err).Error("Failed to lock idempotency key")
				next.ServeHTTP(w, r)
				return
			}
			if !locked {
				internalhttputil.WriteError(w, r, errors.Conflict("A request with this Idempotency-Key is already in progress"), false)
				return
			}
			defer func() {
				if err := store.Unlock(context.Background(), key); err != nil {
					entry.WithError(err).Warn("Failed to release idempotency lock")
				}
			}()

			// A request holding the key may have finished between Get and Lock.
			if rec, err := store.Get(ctx, key); err != nil {
				entry.WithError(err).Error("Failed to read idempotency key")
			} else if rec != nil {
				entry.Info("Idempotency hit, replaying stored response")
				replay(w, rec)
				return
			}

			capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)

			if capture.status >= http.StatusInternalServerError {
				return
			}
			saved := IdempotencyRecord{
				Status:      capture.status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}
			if err := store.Save(context.Background(), key, saved, ttl); err != nil {
				entry.WithError(err).Error("Failed to save idempotency key")
			}
		})
	}
}

func replay(w http.ResponseWriter, rec *IdempotencyRecord) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(IdempotencyHitHeader, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

type captureWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	if c.wroteHeader {
		return
	}
	c.status = code
	c.wroteHeader = true
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

// RedisIdempotencyStore keeps records in Redis under a key prefix.
type RedisIdempotencyStore struct {
	client *redis.Client
	prefix string
}

// NewRedisIdempotencyStore connects using a redis:// URL.
func NewRedisIdempotencyStore(url string) (*RedisIdempotencyStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisIdempotencyStore{client: redis.NewClient(opts), prefix: "novastack:idem:"}, nil
}

// Ping checks connectivity.
func (s *RedisIdempotencyStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*IdempotencyRecord, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec IdempotencyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}

func (s *RedisIdempotencyStore) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+"lock:"+key, "1", ttl).Result()
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, rec IdempotencyRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, data, ttl).Err()
}

func (s *RedisIdempotencyStore) Unlock(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+"lock:"+key).Err()
}

// MemoryIdempotencyStore is the single-process fallback used when Redis is
// not configured.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	locks   map[string]time.Time
	now     func() time.Time
}

type memoryRecord struct {
	rec     IdempotencyRecord
	expires time.Time
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		records: make(map[string]memoryRecord),
		locks:   make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) (*IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	if !stored.expires.IsZero() && !s.now().Before(stored.expires) {
		delete(s.records, key)
		return nil, nil
	}
	rec := stored.rec
	rec.Body = append([]byte(nil), stored.rec.Body...)
	return &rec, nil
}

func (s *MemoryIdempotencyStore) Lock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if until, held := s.locks[key]; held && s.now().Before(until) {
		return false, nil
	}
	s.locks[key] = s.now().Add(ttl)
	return true, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, key string, rec IdempotencyRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := memoryRecord{rec: rec}
	stored.rec.Body = append([]byte(nil), rec.Body...)
	if ttl > 0 {
		stored.expires = s.now().Add(ttl)
	}
	s.records[key] = stored
	return nil
}

func (s *MemoryIdempotencyStore) Unlock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}

var (
	_ IdempotencyStore = (*RedisIdempotencyStore)(nil)
	_ IdempotencyStore = (*MemoryIdempotencyStore)(nil)
)
