package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/mdimg/pkg/config"
	"github.com/Sriram-PR/mdimg/pkg/utils"
)

// Fetcher downloads images to local files with a single GET per URL
type Fetcher struct {
	client *http.Client
	cfg    *config.AppConfig
	log    *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, cfg *config.AppConfig, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client: client,
		cfg:    cfg,
		log:    log,
	}
}

// Download retrieves rawURL and stores the body at destPath, creating parent
// directories as needed. It returns destPath once the file is fully written,
// synced and closed. Every failure is a *utils.DownloadError; a non-200 status
// leaves no file behind and a failed transfer removes the partial file.
func (f *Fetcher) Download(ctx context.Context, rawURL, destPath string) (string, error) {
	dlLog := f.log.WithFields(logrus.Fields{"img_url": rawURL, "dest": destPath})

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", utils.NewTransportError(rawURL, fmt.Errorf("%w: %w", utils.ErrParsing, err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", utils.NewTransportError(rawURL, fmt.Errorf("%w: scheme '%s'", utils.ErrUnsupportedURL, u.Scheme))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", utils.NewTransportError(rawURL, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err))
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", utils.NewTransportError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		dlLog.WithField("status_code", resp.StatusCode).Debug("Non-200 response")
		return "", utils.NewStatusError(rawURL, resp.StatusCode)
	}

	maxSize := f.cfg.MaxImageSizeBytes
	if maxSize > 0 && resp.ContentLength > maxSize {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxSize))
		return "", utils.NewTransportError(rawURL, fmt.Errorf("%w: content-length %d > %d", utils.ErrImageTooLarge, resp.ContentLength, maxSize))
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", utils.NewTransportError(rawURL, fmt.Errorf("%w: create image dir: %w", utils.ErrFilesystem, err))
	}

	written, err := f.writeBody(resp.Body, destPath, maxSize)
	if err != nil {
		if rmErr := os.Remove(destPath); rmErr != nil && !os.IsNotExist(rmErr) {
			dlLog.Debugf("Could not remove partial file: %v", rmErr)
		}
		return "", utils.NewTransportError(rawURL, err)
	}

	dlLog.WithField("bytes", written).Debug("Image downloaded")
	return destPath, nil
}

// writeBody streams body into a fresh file at destPath. maxSize <= 0 means unlimited.
func (f *Fetcher) writeBody(body io.Reader, destPath string, maxSize int64) (int64, error) {
	out, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("%w: create '%s': %w", utils.ErrFilesystem, destPath, err)
	}

	var src io.Reader = body
	if maxSize > 0 {
		// One extra byte tells an exact-size body from an oversized one
		src = io.LimitReader(body, maxSize+1)
	}

	written, copyErr := io.Copy(out, src)
	if copyErr == nil && maxSize > 0 && written > maxSize {
		copyErr = fmt.Errorf("%w: more than %d bytes", utils.ErrImageTooLarge, maxSize)
	} else if copyErr != nil {
		copyErr = fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, copyErr)
	}
	if copyErr == nil {
		if err := out.Sync(); err != nil {
			copyErr = fmt.Errorf("%w: sync '%s': %w", utils.ErrFilesystem, destPath, err)
		}
	}
	if err := out.Close(); err != nil && copyErr == nil {
		copyErr = fmt.Errorf("%w: close '%s': %w", utils.ErrFilesystem, destPath, err)
	}
	return written, copyErr
}
