// Package evidence submits audit evidence to an Eramba-compatible GRC API.
package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/naka-gawa/pr-audit/internal/domain"
)

const (
	defaultSource      = "Erambot"
	defaultType        = "log"
	defaultDescription = "Automated evidence upload"
	reportType         = "report"
	timestampLayout    = "2006-01-02T15:04:05.000000Z"
)

// Evidence is one structured evidence record.
type Evidence struct {
	Type        string
	Description string
	Source      string
	Content     map[string]interface{}
}

// payload is the JSON body of an evidence submission.
type payload struct {
	Timestamp    string                 `json:"timestamp"`
	EvidenceType string                 `json:"evidence_type"`
	Description  string                 `json:"description"`
	Source       string                 `json:"source"`
	Content      map[string]interface{} `json:"content"`
}

// Uploader submits evidence for controls.
type Uploader struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *log.Logger
	now        func() time.Time
}

// NewUploader creates an Uploader for the API rooted at baseURL.
func NewUploader(baseURL, token string, httpClient *http.Client, logger *log.Logger) *Uploader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Uploader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// ViolationEvidence describes a violation as an approval record.
func ViolationEvidence(v domain.Violation) Evidence {
	author := v.Author
	if author == "" {
		author = "unknown"
	}
	return Evidence{
		Type:        "approval_record",
		Description: fmt.Sprintf("Pull request #%d (%s) merged by %s without external approval.", v.PRNumber, v.Title, author),
		Source:      "GitHub API",
		Content: map[string]interface{}{
			"pr_id":     v.PRNumber,
			"author":    v.Author,
			"merged_at": v.MergedAt.UTC().Format(time.RFC3339),
		},
	}
}

// SubmitEvidence posts a structured evidence record for controlID.
// Empty fields of e fall back to generic defaults.
func (u *Uploader) SubmitEvidence(ctx context.Context, controlID string, e Evidence) error {
	body := payload{
		Timestamp:    u.timestamp(),
		EvidenceType: orDefault(e.Type, defaultType),
		Description:  orDefault(e.Description, defaultDescription),
		Source:       orDefault(e.Source, defaultSource),
		Content:      e.Content,
	}
	if body.Content == nil {
		body.Content = map[string]interface{}{}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.evidencesURL(controlID), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build evidence request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := u.send(req); err != nil {
		return err
	}
	u.logger.Printf("Evidence submitted for control %s", controlID)
	return nil
}

// SubmitPDF uploads a PDF report as evidence for controlID.
func (u *Uploader) SubmitPDF(ctx context.Context, controlID, filename string, pdf io.Reader, description string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"timestamp", u.timestamp()},
		{"evidence_type", reportType},
		{"description", orDefault(description, "Automated PDF evidence upload")},
		{"source", defaultSource},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	header.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, pdf); err != nil {
		return fmt.Errorf("failed to copy PDF into request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.evidencesURL(controlID), &buf)
	if err != nil {
		return fmt.Errorf("failed to build PDF evidence request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := u.send(req); err != nil {
		return err
	}
	u.logger.Printf("PDF evidence submitted for control %s", controlID)
	return nil
}

// StatusError is returned when the API answers with anything but 201 Created.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("evidence API returned %d: %s", e.StatusCode, e.Body)
}

func (u *Uploader) send(req *http.Request) error {
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to submit evidence: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}

func (u *Uploader) evidencesURL(controlID string) string {
	return fmt.Sprintf("%s/api/controls/%s/evidences", u.baseURL, url.PathEscape(controlID))
}

func (u *Uploader) timestamp() string {
	return u.now().UTC().Format(timestampLayout)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
