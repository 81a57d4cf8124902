// Package bulkarchive implements the bulk archive downloader/extractor
// used by pre-assembled-dataset ingestors (ELO, RAPTOR, pre-modern box
// scores, pre-assembled play-by-play). Bulk sources have no per-request
// rate limit; the cost is the one-time download.
package bulkarchive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/nbavault/vault/internal/ingestkit"
)

type Client struct {
	httpClient *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{httpClient: httpClient}
}

// Row is one parsed record from a bulk archive, keyed by the archive's
// own column headers.
type Row map[string]string

// DownloadAndExtract fetches url, optionally verifying its sha256
// against expectedHash when non-empty, transparently un-gzipping
// bodies that start with the gzip magic bytes, and parses the result
// as CSV into Rows.
func (c *Client) DownloadAndExtract(ctx context.Context, url, expectedHash string) ([]Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bulkarchive: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ingestkit.Retryable(fmt.Errorf("bulkarchive: send request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ingestkit.Retryable(fmt.Errorf("bulkarchive: read body: %w", err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if len(raw) == 0 {
			return nil, ingestkit.ErrSourceEmpty
		}
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, ingestkit.Retryable(fmt.Errorf("bulkarchive: status=%d", resp.StatusCode))
	default:
		return nil, fmt.Errorf("bulkarchive: status=%d", resp.StatusCode)
	}

	if expectedHash != "" {
		sum := sha256.Sum256(raw)
		if hex.EncodeToString(sum[:]) != expectedHash {
			return nil, fmt.Errorf("bulkarchive: content hash mismatch for %s", url)
		}
	}

	reader := io.Reader(bytes.NewReader(raw))
	if isGzip(raw) {
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("bulkarchive: open gzip stream: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return parseCSV(reader)
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

func parseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ingestkit.ErrSourceEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("bulkarchive: read csv header: %w", err)
	}
	cols := append([]string(nil), header...)

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bulkarchive: read csv row: %w", err)
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ingestkit.ErrSourceEmpty
	}
	return rows, nil
}
