package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const userAgent = "batchscribe/1"

// partialSuffix marks an unfinished model transfer. The file survives a
// failed or interrupted attempt so the next one can continue from its end.
const partialSuffix = ".part"

// Options describes a single model file transfer.
type Options struct {
	URL            string
	Destination    string
	ExpectedSHA256 string
	ChecksumURL    string
	Retries        int
	Backoff        time.Duration
	NoProgress     bool
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Retries <= 0 {
		o.Retries = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 300 * time.Millisecond
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Minute}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// StatusError is returned for responses the transfer cannot use.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// DownloadFile fetches opts.URL into opts.Destination. Bytes land in a
// sibling partial file first; an interrupted transfer is resumed with a range
// request and the file only takes its final name once the digest matches.
func DownloadFile(ctx context.Context, opts Options) error {
	if opts.URL == "" {
		return errors.New("download URL is required")
	}
	if opts.Destination == "" {
		return errors.New("destination path is required")
	}
	opts = opts.withDefaults()

	expected := normalizeDigest(opts.ExpectedSHA256)
	if expected == "" && opts.ChecksumURL != "" {
		digest, err := ResolveExpectedChecksum(ctx, opts.ChecksumURL, filepath.Base(opts.Destination), opts.HTTPClient)
		if err != nil {
			return fmt.Errorf("fetch checksum: %w", err)
		}
		expected = digest
	}

	if err := os.MkdirAll(filepath.Dir(opts.Destination), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	partPath := opts.Destination + partialSuffix
	var lastErr error
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		if attempt > 1 {
			opts.Logger.Warn("retrying download",
				zap.Int("attempt", attempt),
				zap.Int("max", opts.Retries),
				zap.String("url", opts.URL),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * opts.Backoff):
			}
		}

		lastErr = fetchPartial(ctx, opts, partPath)
		if lastErr == nil {
			lastErr = promotePartial(partPath, opts.Destination, expected)
		}
		if lastErr == nil {
			return nil
		}
		if !retryable(ctx, lastErr) {
			return lastErr
		}
	}

	return lastErr
}

// retryable rejects failures a second attempt cannot fix: a canceled
// context and client errors such as 404 for an unknown model file.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}
	return true
}

// fetchPartial appends the missing tail of the model to partPath, or rewrites
// it from the start when the server does not honour the range.
func fetchPartial(ctx context.Context, opts Options, partPath string) error {
	offset := partialSize(partPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch {
	case resp.StatusCode == http.StatusOK:
		if offset > 0 {
			opts.Logger.Debug("server ignored range request, starting over", zap.String("url", opts.URL))
		}
		offset = 0
		flags |= os.O_TRUNC
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		if !strings.HasPrefix(resp.Header.Get("Content-Range"), fmt.Sprintf("bytes %d-", offset)) {
			_ = os.Remove(partPath)
			return fmt.Errorf("server resumed at an unexpected offset (%q)", resp.Header.Get("Content-Range"))
		}
		opts.Logger.Info("resuming download", zap.String("file", filepath.Base(opts.Destination)), zap.Int64("offset", offset))
		flags |= os.O_APPEND
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0:
		if remoteSize(resp.Header.Get("Content-Range")) == offset {
			return nil
		}
		_ = os.Remove(partPath)
		return errors.New("partial download does not match the remote file, starting over")
	default:
		return &StatusError{Code: resp.StatusCode}
	}

	out, err := os.OpenFile(partPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open partial file: %w", err)
	}
	defer out.Close()

	var sink io.Writer = out
	bar := newTransferBar(opts.NoProgress, filepath.Base(opts.Destination), offset, resp.ContentLength)
	if bar != nil {
		sink = io.MultiWriter(out, bar)
	}

	if _, err := io.Copy(sink, resp.Body); err != nil {
		return fmt.Errorf("download body: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync partial file: %w", err)
	}
	return out.Close()
}

// promotePartial gives a finished transfer its final name. A digest mismatch
// throws the partial file away so the next attempt starts clean.
func promotePartial(partPath, destination, expected string) error {
	if err := VerifyFileChecksum(partPath, expected); err != nil {
		_ = os.Remove(partPath)
		return err
	}
	if err := os.Rename(partPath, destination); err != nil {
		return fmt.Errorf("move partial file into destination: %w", err)
	}
	return nil
}

func partialSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return 0
	}
	return info.Size()
}

// remoteSize reads the complete length from a "bytes */<size>" Content-Range.
func remoteSize(contentRange string) int64 {
	raw, ok := strings.CutPrefix(contentRange, "bytes */")
	if !ok {
		return -1
	}
	size, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return -1
	}
	return size
}

func newTransferBar(noProgress bool, name string, offset, remaining int64) *progressbar.ProgressBar {
	if noProgress || remaining <= 0 || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}

	bar := progressbar.NewOptions64(
		offset+remaining,
		progressbar.OptionSetDescription("downloading "+name),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	if offset > 0 {
		_ = bar.Set64(offset)
	}
	return bar
}
