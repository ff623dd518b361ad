package marketdata

// client.go — HTTP compartido por los providers remotos (Stooq, FRED):
// rate limiting, retries con backoff exponencial y jitter, y caché local
// en disco para que los estudios sean repetibles sin red.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Ambas fuentes son servicios públicos sin SLA; un request por
	// segundo con burst corto es más que suficiente para universos de ETFs.
	requestsPerSec = 1
	requestBurst   = 3

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// client es el HTTP client común con rate limiting, retries y caché.
type client struct {
	http     *http.Client
	limiter  *rate.Limiter
	cacheDir string
}

// newClient crea el client. cacheDir vacío desactiva la caché.
func newClient(cacheDir string) *client {
	return &client{
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(requestsPerSec, requestBurst),
		cacheDir: cacheDir,
	}
}

// getCached devuelve el body del URL, sirviendo desde la caché si existe
// una copia bajo cacheKey y escribiéndola tras una descarga con éxito.
func (c *client) getCached(ctx context.Context, url, cacheKey string) ([]byte, error) {
	if body, ok := c.readCache(cacheKey); ok {
		slog.Debug("cache hit", "key", cacheKey)
		return body, nil
	}

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	c.writeCache(cacheKey, body)
	return body, nil
}

// get descarga el URL con rate limiting y retries.
func (c *client) get(ctx context.Context, url string) ([]byte, error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return nil, fmt.Errorf("status %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("retrying download", "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return body, nil
	}
	return nil, fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial y jitter, respetando el contexto.
func (c *client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	wait += time.Duration(rand.Int63n(int64(baseRetryWait)))
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

func (c *client) readCache(key string) ([]byte, bool) {
	if c.cacheDir == "" {
		return nil, false
	}
	body, err := os.ReadFile(filepath.Join(c.cacheDir, key))
	if err != nil {
		return nil, false
	}
	return body, true
}

func (c *client) writeCache(key string, body []byte) {
	if c.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		slog.Warn("cannot create cache dir", "dir", c.cacheDir, "err", err)
		return
	}
	path := filepath.Join(c.cacheDir, key)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		slog.Warn("cannot write cache file", "path", path, "err", err)
	}
}
