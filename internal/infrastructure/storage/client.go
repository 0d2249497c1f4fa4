// Package storage implements the object-storage client used for lesson videos
// and course thumbnails. It speaks the Supabase-compatible storage REST API.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/learnhub/learning-hub/internal/domain/shared"
	"github.com/learnhub/learning-hub/pkg/circuitbreaker"
	"github.com/learnhub/learning-hub/pkg/logger"
	"github.com/learnhub/learning-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// DefaultFileSizeLimit is the per-object limit set on a newly created bucket (500 MB).
const DefaultFileSizeLimit int64 = 524288000

// Config contains configuration for the storage client.
type Config struct {
	// URL is the project URL; the client appends /storage/v1.
	URL string

	// APIKey is a service key sent as bearer token and apikey header.
	APIKey string

	// Bucket holds every uploaded object.
	Bucket string

	// FileSizeLimit applies when EnsureBucket creates the bucket.
	FileSizeLimit int64

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	Logger *logger.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(baseURL, apiKey, bucket string) Config {
	return Config{
		URL:           baseURL,
		APIKey:        apiKey,
		Bucket:        bucket,
		FileSizeLimit: DefaultFileSizeLimit,
		Timeout:       5 * time.Minute,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// StatusError is a non-2xx answer from the storage API.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("storage %s: status %d: %s", e.Op, e.Status, e.Body)
}

// notFound reports whether the API said the resource does not exist.
// Supabase answers a missing bucket with 400 and a "not found" message.
func (e *StatusError) notFound() bool {
	if e.Status == http.StatusNotFound {
		return true
	}
	return e.Status == http.StatusBadRequest && strings.Contains(strings.ToLower(e.Body), "not found")
}

func (e *StatusError) conflict() bool {
	if e.Status == http.StatusConflict {
		return true
	}
	body := strings.ToLower(e.Body)
	return strings.Contains(body, "already exists") || strings.Contains(body, "duplicate")
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client uploads objects and signs download URLs.
type Client struct {
	config  Config
	baseURL string
	http    *resty.Client
	log     *logger.Logger
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
}

// NewClient creates a new storage client.
func NewClient(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, errors.New("storage: url is required")
	}
	if config.Bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	if config.FileSizeLimit <= 0 {
		config.FileSizeLimit = DefaultFileSizeLimit
	}
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	log := config.Logger.With(logger.Component("storage"))

	baseURL := strings.TrimRight(config.URL, "/") + "/storage/v1"
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if config.Timeout > 0 {
		httpClient.SetTimeout(config.Timeout)
	}
	if config.APIKey != "" {
		httpClient.SetAuthToken(config.APIKey).SetHeader("apikey", config.APIKey)
	}

	return &Client{
		config:  config,
		baseURL: baseURL,
		http:    httpClient,
		log:     log,
		retrier: retry.StorageRetrier(func(attempt int, err error, delay time.Duration) {
			log.Warn("storage call failed, retrying",
				logger.Int("attempt", attempt), logger.Err(err), logger.Duration("delay", delay))
		}),
		breaker: circuitbreaker.StorageBreaker(retry.IsRetryable, func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name), logger.String("from", from.String()), logger.String("to", to.String()))
		}),
	}, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string { return c.config.Bucket }

// EnsureBucket creates the private bucket when it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context) error {
	err := c.call(ctx, "GetBucket", func(ctx context.Context) (*resty.Response, error) {
		return c.http.R().SetContext(ctx).Get("/bucket/" + url.PathEscape(c.config.Bucket))
	})
	if err == nil {
		return nil
	}
	var se *StatusError
	if !errors.As(err, &se) || !se.notFound() {
		return err
	}

	body := map[string]any{
		"id":              c.config.Bucket,
		"name":            c.config.Bucket,
		"public":          false,
		"file_size_limit": c.config.FileSizeLimit,
	}
	err = c.call(ctx, "CreateBucket", func(ctx context.Context) (*resty.Response, error) {
		return c.http.R().SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			Post("/bucket")
	})
	if errors.As(err, &se) && se.conflict() {
		return nil
	}
	if err != nil {
		return err
	}
	c.log.Info("bucket created", logger.String("bucket", c.config.Bucket))
	return nil
}

// Upload stores body at objectPath. Existing objects are never overwritten.
// A body that is an io.Seeker is rewound between attempts; any other reader
// is sent once.
func (c *Client) Upload(ctx context.Context, objectPath, contentType string, body io.Reader, size int64) error {
	seeker, rewindable := body.(io.Seeker)
	attempts := 0

	err := c.call(ctx, "Upload", func(ctx context.Context) (*resty.Response, error) {
		attempts++
		if attempts > 1 {
			if !rewindable {
				return nil, retry.Permanent(errors.New("storage: upload body cannot be replayed"))
			}
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return nil, retry.Permanent(fmt.Errorf("rewind body: %w", err))
			}
		}
		return c.http.R().SetContext(ctx).
			SetHeader("Content-Type", contentType).
			SetHeader("x-upsert", "false").
			SetBody(body).
			Post(c.objectURL("/object", objectPath))
	})

	var se *StatusError
	if errors.As(err, &se) && se.conflict() {
		return shared.WrapError("storage", "Upload", shared.ErrAlreadyExists, "object already exists", err)
	}
	if err != nil {
		if shared.IsExternalService(err) {
			return err
		}
		return shared.WrapError("storage", "Upload", shared.ErrExternalService, "object storage rejected the upload", err)
	}
	c.log.Info("object uploaded", logger.ObjectPath(objectPath), logger.Int64("size", size))
	return nil
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
}

// SignedURL returns a download URL for objectPath valid for ttl.
func (c *Client) SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	var out signResponse
	err := c.call(ctx, "SignURL", func(ctx context.Context) (*resty.Response, error) {
		return c.http.R().SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]int64{"expiresIn": int64(ttl / time.Second)}).
			SetResult(&out).
			Post(c.objectURL("/object/sign", objectPath))
	})
	if err != nil {
		return "", err
	}
	if out.SignedURL == "" {
		return "", fmt.Errorf("storage SignURL: empty signed url")
	}
	if strings.HasPrefix(out.SignedURL, "http://") || strings.HasPrefix(out.SignedURL, "https://") {
		return out.SignedURL, nil
	}
	return c.baseURL + "/" + strings.TrimLeft(out.SignedURL, "/"), nil
}

// State reports the circuit breaker state, for health output.
func (c *Client) State() circuitbreaker.State {
	return c.breaker.State()
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERNAL
// ══════════════════════════════════════════════════════════════════════════════

// objectURL builds prefix/{bucket}/{escaped path segments}.
func (c *Client) objectURL(prefix, objectPath string) string {
	segments := strings.Split(strings.TrimLeft(objectPath, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return prefix + "/" + url.PathEscape(c.config.Bucket) + "/" + strings.Join(segments, "/")
}

// call runs one API operation through the breaker with retries. Transport
// errors and 5xx/429 answers are retried; other statuses fail at once.
func (c *Client) call(ctx context.Context, op string, do func(ctx context.Context) (*resty.Response, error)) error {
	start := time.Now()
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			resp, err := do(ctx)
			if err != nil {
				if retry.IsPermanent(err) {
					return err
				}
				return retry.Retryable(fmt.Errorf("storage %s: %w", op, err))
			}
			if resp.IsSuccess() {
				return nil
			}
			se := &StatusError{Op: op, Status: resp.StatusCode(), Body: resp.String()}
			if se.Status >= 500 || se.Status == http.StatusTooManyRequests {
				return retry.Retryable(se)
			}
			return se
		})
	})
	if err == nil {
		return nil
	}
	c.log.Debug("storage call failed", logger.Operation(op), logger.Err(err), logger.Latency(time.Since(start)))
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return shared.WrapError("storage", op, shared.ErrServiceUnavailable, "object storage is unavailable", err)
	}
	return err
}
