package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ordenapp/internal/domain"
)

const pdfContentType = "application/pdf"

// RemoteRenderer converts the HTML report to PDF through an HTTP conversion service.
// The service receives the HTML as the request body and answers with the PDF bytes.
type RemoteRenderer struct {
	html   *HTMLRenderer
	url    string
	client *http.Client
}

// NewRemoteRenderer creates a PDF renderer. Per-attempt deadlines come from ctx;
// the client timeout only bounds requests made without one.
func NewRemoteRenderer(html *HTMLRenderer, url string) *RemoteRenderer {
	return &RemoteRenderer{
		html:   html,
		url:    url,
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (r *RemoteRenderer) Render(ctx context.Context, templateID string, snapshot *domain.ReportSnapshot) ([]byte, string, error) {
	page, _, err := r.html.Render(ctx, templateID, snapshot)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(page))
	if err != nil {
		return nil, "", fmt.Errorf("failed to build render request: %w", err)
	}
	req.Header.Set("Content-Type", htmlContentType)
	req.Header.Set("Accept", pdfContentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("render service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("render service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read rendered document: %w", err)
	}
	if len(body) == 0 {
		return nil, "", fmt.Errorf("render service returned an empty document")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = pdfContentType
	}
	return body, contentType, nil
}
