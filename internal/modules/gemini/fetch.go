package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxInlineBytes = 20 << 20 // generateContent rejects larger inline payloads

// FilePart is the outcome of fetching file content for analysis. Either
// Inline is set (raw bytes ready for multimodal submission), or RefURL names
// the file for degraded URL-as-text mode.
type FilePart struct {
	Inline *inlineData
	RefURL string
}

// Degraded reports whether the fetch fell back to a URL reference.
func (p FilePart) Degraded() bool { return p.Inline == nil }

// Fetcher downloads stored files and converts them into inlineable payloads.
type Fetcher struct {
	http      *http.Client
	cloudName string
	log       *zap.Logger
}

func NewFetcher(cloudName string, timeout time.Duration, log *zap.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		http:      &http.Client{Timeout: timeout},
		cloudName: cloudName,
		log:       log,
	}
}

// Fetch produces the file part for an analysis request. For PDFs a rendered
// first-page JPEG preview is preferred over the raw document, keyed by the
// file's public ID. Any failure degrades to a URL reference instead of
// surfacing an error; the fetch is attempted exactly once.
func (f *Fetcher) Fetch(ctx context.Context, fileURL, fileType, filePublicID string) FilePart {
	inlineURL := fileURL
	var mimeType string

	if strings.EqualFold(fileType, "pdf") {
		if preview := f.PDFPreviewURL(filePublicID); preview != "" {
			inlineURL = preview
			mimeType = "image/jpeg"
		} else {
			mimeType = "application/pdf"
		}
	} else {
		mimeType = inferMIMEFromURL(fileURL, "image/png")
	}

	data, err := f.fetchBytes(ctx, inlineURL)
	if err != nil {
		if f.log != nil {
			f.log.Warn("file fetch failed, degrading to url reference",
				zap.String("url", inlineURL), zap.Error(err))
		}
		return FilePart{RefURL: fileURL}
	}

	return FilePart{Inline: &inlineData{
		MIMEType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}}
}

func (f *Fetcher) fetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxInlineBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxInlineBytes {
		return nil, fmt.Errorf("file exceeds inline limit of %d bytes", maxInlineBytes)
	}
	return data, nil
}

// PDFPreviewURL builds the first-page JPEG rendering of a stored PDF, or ""
// when the cloud name or public ID is missing.
func (f *Fetcher) PDFPreviewURL(filePublicID string) string {
	if f.cloudName == "" || filePublicID == "" {
		return ""
	}
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/pg_1,f_jpg/%s.jpg",
		f.cloudName, escapePublicID(filePublicID))
}

func escapePublicID(id string) string {
	segments := strings.Split(id, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func inferMIMEFromURL(rawURL, fallback string) string {
	u := strings.ToLower(rawURL)
	if i := strings.Index(u, "?"); i >= 0 {
		u = u[:i]
	}
	switch {
	case strings.HasSuffix(u, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(u, ".png"):
		return "image/png"
	case strings.HasSuffix(u, ".jpg"), strings.HasSuffix(u, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(u, ".webp"):
		return "image/webp"
	}
	return fallback
}
