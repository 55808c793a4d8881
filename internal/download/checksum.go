package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
)

// digestPattern matches a sha256 hex digest anywhere on a sha256sum-style line.
var digestPattern = regexp.MustCompile(`(?i)\b([a-f0-9]{64})\b`)

// ChecksumError reports a model file whose contents do not hash to the
// published digest.
type ChecksumError struct {
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// ResolveExpectedChecksum fetches a checksum listing and returns the digest
// published for fileName.
func ResolveExpectedChecksum(ctx context.Context, checksumURL, fileName string, client *http.Client) (string, error) {
	if strings.TrimSpace(checksumURL) == "" {
		return "", errors.New("checksum URL is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	listing, err := fetchListing(ctx, client, checksumURL)
	if err != nil {
		return "", err
	}
	return ParseChecksum(listing, fileName)
}

// ParseChecksum picks a digest out of a checksum listing. A line that names
// fileName wins; otherwise the first digest in the listing is used.
func ParseChecksum(content []byte, fileName string) (string, error) {
	fallback := ""
	for line := range strings.Lines(string(content)) {
		digest := digestOnLine(line)
		if digest == "" {
			continue
		}
		if fileName != "" && strings.Contains(line, fileName) {
			return digest, nil
		}
		if fallback == "" {
			fallback = digest
		}
	}

	if fallback == "" {
		return "", errors.New("sha256 checksum not found")
	}
	return fallback, nil
}

// VerifyFileChecksum hashes the file at path and compares it with
// expectedSHA256. An empty expectation always passes.
func VerifyFileChecksum(path, expectedSHA256 string) error {
	want := normalizeDigest(expectedSHA256)
	if want == "" {
		return nil
	}

	got, err := fileDigest(path)
	if err != nil {
		return err
	}
	if got != want {
		return &ChecksumError{Expected: want, Actual: got}
	}
	return nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func fetchListing(ctx context.Context, client *http.Client, listingURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	// Listings are a few lines; cap the read so a wrong URL cannot pull a model.
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

func digestOnLine(line string) string {
	match := digestPattern.FindStringSubmatch(line)
	if len(match) < 2 {
		return ""
	}
	return strings.ToLower(match[1])
}

func normalizeDigest(digest string) string {
	return strings.ToLower(strings.TrimSpace(digest))
}
