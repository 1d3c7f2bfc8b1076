// Package download implements the HTTPS fetch and archive extraction helpers
// shared by the toolchain and system dependency phases.
package download

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
)

// NewClient returns an HTTP client that refuses TLS versions older than 1.2.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
}

func getProgressBar(length int64, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.DefaultBytes(length, desc)
}

// Fetch streams the given URL into the file at dest and returns the hex
// encoded SHA-256 digest of the downloaded bytes. A non-empty expectedSha256
// that doesn't match the digest is an error. There is no retry logic; the
// first failure aborts.
func Fetch(ctx context.Context, client *http.Client, url, dest, expectedSha256 string) (string, error) {
	handle, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrapf(err, "Failed to create %s", dest)
	}
	defer handle.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrapf(err, "Failed to build request for %s", url)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "Failed to start download for %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("Got status %s for %s", resp.Status, url)
	}

	hash := sha256.New()
	bar := getProgressBar(resp.ContentLength, "     download")
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if err != nil && n < 1 {
			if err == io.EOF {
				break
			}
			return "", eris.Wrapf(err, "Failed during download of %s", url)
		}

		_, err = hash.Write(buf[:n])
		if err != nil {
			return "", eris.Wrapf(err, "Failed to calculate checksum for %s", url)
		}

		_, err = handle.Write(buf[:n])
		if err != nil {
			return "", eris.Wrapf(err, "Failed to write download to %s", dest)
		}

		bar.Write(buf[:n])
	}
	bar.Finish()

	digest := hex.EncodeToString(hash.Sum(nil))
	if expectedSha256 != "" && digest != expectedSha256 {
		return digest, eris.Errorf("Checksum mismatch for %s: expected %s, got %s", url, expectedSha256, digest)
	}

	return digest, nil
}
