package interview

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Presigned URLs are self-authenticating: the signature covers the
// exact request, so no bearer header, an explicit Content-Length (a
// bytes.Reader body never goes chunked), and no Expect: 100-continue.
// These requests bypass the authed client entirely.

func putTimeout(size int) time.Duration {
	mb := size / (1024 * 1024)
	secs := mb*2 + 30
	if secs < 60 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

// PutBytes uploads b to the presigned URL. Success is 200 or 204.
func (s *Service) PutBytes(ctx context.Context, target *UploadTarget, b []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, putTimeout(len(b)))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.PutURL, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("upload request: %w", err)
	}
	req.ContentLength = int64(len(b))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("upload: status %d", resp.StatusCode)
	}
	return nil
}

// DownloadAudio fetches question audio from a presigned URL with a
// plain unauthenticated GET.
func (s *Service) DownloadAudio(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if len(b) < minAudioBytes {
		return nil, fmt.Errorf("download: %d bytes is too short to be audio", len(b))
	}
	return b, nil
}
