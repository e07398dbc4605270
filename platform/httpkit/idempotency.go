package httpkit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"guest_registry_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	// IdempotencyHeader names the client-chosen replay key.
	IdempotencyHeader = "Idempotency-Key"

	// MaxBodyBytes bounds the request bodies read by this package and by handlers.
	MaxBodyBytes = 1 << 20

	idempotencyPrefix  = "idempotency:"
	idempotencyLockTTL = 30 * time.Second
)

// Idempotency replays the first completed response for a repeated
// Idempotency-Key on POST requests. Keys live in Redis for the configured TTL.
type Idempotency struct {
	redis *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

type cachedResponse struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	BodyHash    string `json:"body_hash"`
}

// NewIdempotency creates the middleware backed by client.
func NewIdempotency(client *redis.Client, ttl time.Duration, log *logger.Logger) *Idempotency {
	return &Idempotency{redis: client, ttl: ttl, log: log}
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware returns the gin handler. Requests without the header, or with
// a method other than POST, pass through untouched. Redis failures fail open.
func (m *Idempotency) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if c.Request.Method != http.MethodPost || key == "" {
			c.Next()
			return
		}

		bodyBytes, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		ctx := c.Request.Context()
		bodyHash := hashBody(bodyBytes)
		cacheKey := idempotencyKey(c.Request.Method, c.FullPath(), key)

		cached, err := m.lookup(ctx, cacheKey)
		switch {
		case err == nil:
			if cached.BodyHash != bodyHash {
				c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{Error: "idempotency key already used with a different request"})
				return
			}
			c.Data(cached.StatusCode, cached.ContentType, cached.Body)
			c.Abort()
			return
		case !errors.Is(err, redis.Nil):
			m.log.Warn("idempotency lookup failed", slog.String("error", err.Error()))
			c.Next()
			return
		}

		lockKey := cacheKey + ":lock"
		locked, err := m.redis.SetNX(ctx, lockKey, "1", idempotencyLockTTL).Result()
		if err != nil {
			m.log.Warn("idempotency lock failed", slog.String("error", err.Error()))
			c.Next()
			return
		}
		if !locked {
			c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{Error: "a request with this idempotency key is already being processed"})
			return
		}
		defer m.redis.Del(context.WithoutCancel(ctx), lockKey)

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			return
		}
		data, err := json.Marshal(cachedResponse{
			StatusCode:  c.Writer.Status(),
			ContentType: c.Writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
			BodyHash:    bodyHash,
		})
		if err != nil {
			return
		}
		if err := m.redis.Set(context.WithoutCancel(ctx), cacheKey, data, m.ttl).Err(); err != nil {
			m.log.Warn("idempotency store failed", slog.String("error", err.Error()))
		}
	}
}

func (m *Idempotency) lookup(ctx context.Context, key string) (*cachedResponse, error) {
	data, err := m.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

// idempotencyKey scopes a client key to one route so the same key on
// another endpoint never replays this one's response.
func idempotencyKey(method, route, key string) string {
	return idempotencyPrefix + method + ":" + route + ":" + key
}

func hashBody(body []byte) string {
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}
