package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelsync/internal/config"
	"reelsync/internal/logging"
)

var (
	// ErrHTMLPage marks a response that is a web page rather than media.
	ErrHTMLPage = errors.New("response is an html page")
	// ErrEmpty marks a zero-byte download.
	ErrEmpty = errors.New("downloaded file is empty")
	// ErrTooLarge marks a download that exceeded the size limit.
	ErrTooLarge = errors.New("download exceeds size limit")
	// ErrInvalidURL marks a URL that cannot be fetched at all.
	ErrInvalidURL = errors.New("invalid url")
)

const sniffBytes = 500

// Fetcher downloads rawURL to dest and returns the written path.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dest string) (string, error)
}

// Options configures an HTTPFetcher.
type Options struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Client    *http.Client
	// DriveBase and DocsBase override the Drive download hosts.
	DriveBase string
	DocsBase  string
}

// OptionsFromConfig maps the fetch config section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Timeout:   time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		MaxBytes:  int64(cfg.Fetch.MaxMiB) << 20,
		UserAgent: cfg.Fetch.UserAgent,
	}
}

// HTTPFetcher is the Fetcher used in production.
type HTTPFetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
	driveBase string
	docsBase  string
	logger    *slog.Logger
}

// NewHTTPFetcher returns an HTTPFetcher. The per-request timeout bounds each
// attempt; the caller's context bounds the whole fetch.
func NewHTTPFetcher(opts Options, logger *slog.Logger) *HTTPFetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	f := &HTTPFetcher{
		client:    client,
		maxBytes:  opts.MaxBytes,
		userAgent: strings.TrimSpace(opts.UserAgent),
		driveBase: strings.TrimRight(opts.DriveBase, "/"),
		docsBase:  strings.TrimRight(opts.DocsBase, "/"),
		logger:    logging.NewComponentLogger(logger, "fetch"),
	}
	if f.driveBase == "" {
		f.driveBase = "https://drive.google.com"
	}
	if f.docsBase == "" {
		f.docsBase = "https://docs.google.com"
	}
	if f.userAgent == "" {
		f.userAgent = "reelsync/dev"
	}
	return f
}

// Validate reports whether rawURL can be fetched.
func Validate(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q not supported", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, dest string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := Validate(rawURL); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("ensure download dir: %w", err)
	}

	started := time.Now()
	var (
		written int64
		err     error
	)
	if f.isDrive(rawURL) {
		written, err = f.fetchDrive(ctx, rawURL, dest)
	} else {
		written, err = f.download(ctx, rawURL, dest)
	}
	if err != nil {
		return "", err
	}
	f.logger.Info("download complete",
		logging.String(logging.FieldEventType, "download_complete"),
		logging.String("host", hostOf(rawURL)),
		logging.Int64("bytes", written),
		logging.Duration("elapsed", time.Since(started)),
	)
	return dest, nil
}

func (f *HTTPFetcher) fetchDrive(ctx context.Context, rawURL, dest string) (int64, error) {
	id := DriveFileID(rawURL)
	if id == "" {
		return 0, fmt.Errorf("%w: no drive file id in %q", ErrInvalidURL, rawURL)
	}
	candidates := []string{
		rawURL,
		f.driveBase + "/uc?export=download&id=" + url.QueryEscape(id),
		f.driveBase + "/uc?export=download&id=" + url.QueryEscape(id) + "&confirm=t",
		f.docsBase + "/uc?export=download&id=" + url.QueryEscape(id),
	}
	var errs []error
	for attempt, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		written, err := f.download(ctx, candidate, dest)
		if err == nil {
			return written, nil
		}
		if ctx.Err() != nil {
			return 0, err
		}
		f.logger.Debug("drive download attempt failed",
			logging.Int("attempt", attempt+1),
			logging.String("host", hostOf(candidate)),
			logging.Error(err),
		)
		errs = append(errs, fmt.Errorf("attempt %d: %w", attempt+1, err))
	}
	return 0, fmt.Errorf("drive file %s: all download attempts failed: %w", id, errors.Join(errs...))
}

// download performs one GET. An HTML interstitial that links to a
// confirmed download is followed once.
func (f *HTTPFetcher) download(ctx context.Context, target, dest string) (int64, error) {
	resp, err := f.get(ctx, target)
	if err != nil {
		return 0, err
	}
	if isHTML(resp.Header.Get("Content-Type")) {
		page, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		next := confirmURL(page, f.driveBase)
		if next == "" {
			return 0, ErrHTMLPage
		}
		resp, err = f.get(ctx, next)
		if err != nil {
			return 0, err
		}
		if isHTML(resp.Header.Get("Content-Type")) {
			resp.Body.Close()
			return 0, ErrHTMLPage
		}
	}
	defer resp.Body.Close()
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return 0, fmt.Errorf("%w: %d bytes announced", ErrTooLarge, resp.ContentLength)
	}
	return f.writeVerified(resp.Body, dest)
}

func (f *HTTPFetcher) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", hostOf(target), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: status %d", hostOf(target), resp.StatusCode)
	}
	return resp, nil
}

// writeVerified streams body into a temporary file beside dest, checks it,
// and renames it into place.
func (f *HTTPFetcher) writeVerified(body io.Reader, dest string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp download: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) (int64, error) {
		tmp.Close()
		_ = os.Remove(tmpName)
		return 0, err
	}

	reader := body
	if f.maxBytes > 0 {
		reader = io.LimitReader(body, f.maxBytes+1)
	}
	written, err := io.Copy(tmp, reader)
	if err != nil {
		return fail(fmt.Errorf("write download: %w", err))
	}
	if f.maxBytes > 0 && written > f.maxBytes {
		return fail(fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("sync download: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("close download: %w", err)
	}
	if err := VerifyFile(tmpName); err != nil {
		_ = os.Remove(tmpName)
		return 0, err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("rename download: %w", err)
	}
	return written, nil
}

// VerifyFile rejects empty files and files whose first bytes look like an
// HTML document.
func VerifyFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("verify download: %w", err)
	}
	defer file.Close()
	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("verify download: %w", err)
	}
	if n == 0 {
		return ErrEmpty
	}
	lower := bytes.ToLower(head[:n])
	if bytes.Contains(lower, []byte("<html")) || bytes.Contains(lower, []byte("<!doctype")) {
		return ErrHTMLPage
	}
	return nil
}

func isHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return "unknown"
}
