// Package transcription downloads ready-made transcript text by URL.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxBytes   = 2 << 20
	defaultTimeout    = 12 * time.Second
	defaultMaxElapsed = 12 * time.Second
)

var (
	ErrBadURL   = errors.New("transcript url must be an absolute http(s) url")
	ErrTooLarge = errors.New("transcript exceeds size limit")
	ErrNotText  = errors.New("transcript is not valid UTF-8 text")
)

// StatusError is a non-2xx answer from the transcript host.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

type Config struct {
	Timeout    time.Duration
	MaxBytes   int64
	MaxElapsed time.Duration
	// InitialInterval is the first retry wait; the backoff default when zero.
	InitialInterval time.Duration
}

type Fetcher struct {
	http *http.Client
	cfg  Config
	log  *logrus.Entry
}

func NewFetcher(cfg Config, log *logrus.Entry) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = defaultMaxElapsed
	}
	return &Fetcher{http: &http.Client{Timeout: cfg.Timeout}, cfg: cfg, log: log}
}

// Fetch downloads the transcript at rawURL. 5xx answers and transport
// errors are retried with exponential backoff; 4xx answers are not.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrBadURL
	}
	log := f.log.WithField("transcript_url", u.Redacted())

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = f.cfg.MaxElapsed
	if f.cfg.InitialInterval > 0 {
		bo.InitialInterval = f.cfg.InitialInterval
	}

	var text string
	op := func() error {
		t, err := f.download(ctx, u.String())
		if err != nil {
			var sErr *StatusError
			if errors.Is(err, ErrTooLarge) || errors.Is(err, ErrNotText) || (errors.As(err, &sErr) && sErr.StatusCode < 500) {
				return backoff.Permanent(err)
			}
			return err
		}
		text = t
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.WithFields(logrus.Fields{"error": err.Error(), "wait_ms": wait.Milliseconds()}).Warn("transcript download failed, retrying")
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		return "", err
	}
	log.WithField("bytes", len(text)).Info("transcript downloaded")
	return text, nil
}

func (f *Fetcher) download(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain, */*")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{URL: u, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	if int64(len(b)) > f.cfg.MaxBytes {
		return "", ErrTooLarge
	}
	if !utf8.Valid(b) {
		return "", ErrNotText
	}
	return string(b), nil
}
