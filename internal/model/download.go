package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DownloadError wraps network/disk failures during model asset retrieval.
type DownloadError struct {
	Model string
	Err   error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download model %s: %v", e.Model, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Asset weights compose multi-file downloads into one externally observed
// fraction: the weights file dominates, the tokenizer finishes the tail.
const (
	weightModel     = 0.85
	weightTokenizer = 0.15
)

// Downloader streams model assets to the managed directory. Bytes go straight
// to a temp file and are renamed into place on completion, so the managed
// directory never holds a partial asset.
type Downloader struct {
	client *http.Client
	dir    string
}

// NewDownloader builds a downloader targeting the managed model directory.
func NewDownloader(dir string, client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	return &Downloader{client: client, dir: dir}
}

type asset struct {
	url    string
	name   string
	weight float64
	size   int64
}

// Download fetches every asset of a descriptor, reporting a monotonically
// non-decreasing fraction in [0,1] that reaches exactly 1.0 on success.
func (d *Downloader) Download(ctx context.Context, desc Descriptor, report func(float64)) error {
	if desc.URL == "" {
		return &DownloadError{Model: desc.Name, Err: errors.New("descriptor has no download URL")}
	}
	if report == nil {
		report = func(float64) {}
	}

	assets := []asset{{url: desc.URL, name: desc.FileName, weight: 1.0, size: desc.SizeBytes}}
	if desc.TokenizerURL != "" {
		assets[0].weight = weightModel
		assets = append(assets, asset{
			url:    desc.TokenizerURL,
			name:   desc.TokenizerFileName(),
			weight: weightTokenizer,
		})
	}

	if err := os.MkdirAll(d.dir, 0o700); err != nil {
		return &DownloadError{Model: desc.Name, Err: err}
	}

	monotonic := newMonotonicReporter(report)

	var completed float64
	for _, a := range assets {
		if err := d.fetchAsset(ctx, a, func(assetFraction float64) {
			monotonic(completed + assetFraction*a.weight)
		}); err != nil {
			d.removeAssets(assets)
			return &DownloadError{Model: desc.Name, Err: err}
		}
		completed += a.weight
		monotonic(completed)
	}

	monotonic(1.0)
	return nil
}

// Remove deletes every managed asset of a descriptor.
func (d *Downloader) Remove(desc Descriptor) error {
	paths := []string{filepath.Join(d.dir, desc.FileName)}
	if tok := desc.TokenizerFileName(); tok != "" {
		paths = append(paths, filepath.Join(d.dir, tok))
	}

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

// fetchAsset streams one URL to a temp file and renames it into place.
func (d *Downloader) fetchAsset(ctx context.Context, a asset, report func(float64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", a.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", a.url, resp.StatusCode)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = a.size
	}

	tmpPath := filepath.Join(d.dir, a.name+".partial")
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	counter := &countingWriter{total: total, report: report}
	if _, err := io.Copy(io.MultiWriter(tmp, counter), resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("stream body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	finalPath := filepath.Join(d.dir, a.name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finalize asset: %w", err)
	}
	return nil
}

// removeAssets clears temp and final files after a failed download.
func (d *Downloader) removeAssets(assets []asset) {
	for _, a := range assets {
		_ = os.Remove(filepath.Join(d.dir, a.name+".partial"))
		_ = os.Remove(filepath.Join(d.dir, a.name))
	}
}

// countingWriter reports a bounded per-asset fraction as bytes arrive.
type countingWriter struct {
	total   int64
	written int64
	report  func(float64)
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.total > 0 {
		fraction := float64(w.written) / float64(w.total)
		if fraction > 1 {
			fraction = 1
		}
		w.report(fraction)
	}
	return len(p), nil
}

// newMonotonicReporter clamps progress so observers never see a regression.
func newMonotonicReporter(report func(float64)) func(float64) {
	var highWater float64
	return func(fraction float64) {
		if fraction < highWater {
			return
		}
		if fraction > 1 {
			fraction = 1
		}
		highWater = fraction
		report(fraction)
	}
}
