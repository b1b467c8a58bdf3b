// Package mlclient talks to the external face recognition service.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/imageutil"
)

const (
	defaultURL = "http://localhost:8000"

	// employeeKeyPrefix is how the recognition service names enrolled identities.
	employeeKeyPrefix = "employee:"
)

// Result statuses reported by the recognition service.
const (
	StatusSuccess   = "success"
	StatusFail      = "fail"
	StatusScheduled = "scheduled"
	StatusDuplicate = "duplicate"
)

// APIError is a non-200 response from the recognition service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is a 409 from the recognition service.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// Client calls the recognition service's verify and enroll endpoints.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client. Timeouts are expected on the caller's context.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// VerifyResult is the outcome of matching one face against enrolled employees.
type VerifyResult struct {
	Status     string  `json:"status"`
	Matched    bool    `json:"matched"`
	EmployeeID int64   `json:"employee_id,omitempty"`
	Score      float64 `json:"score"`
	Message    string  `json:"message,omitempty"`
}

type verifyResponse struct {
	Status     string  `json:"status"`
	EmployeeID string  `json:"employee_id"`
	Score      float64 `json:"score"`
	Message    string  `json:"message"`
}

// Verify matches the face in image against enrolled employees.
// A non-positive threshold leaves the service default in place.
func (c *Client) Verify(ctx context.Context, image []byte, threshold float64) (*VerifyResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writeImagePart(writer, "file", "frame.jpg", image); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	endpoint := "/verify"
	if threshold > 0 {
		endpoint += "?" + url.Values{"threshold": {strconv.FormatFloat(threshold, 'f', -1, 64)}}.Encode()
	}

	body, err := c.post(ctx, endpoint, writer.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}

	var resp verifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	result := &VerifyResult{Status: resp.Status, Score: resp.Score, Message: resp.Message}
	if resp.Status != StatusSuccess {
		return result, nil
	}

	id, err := ParseEmployeeID(resp.EmployeeID)
	if err != nil {
		return nil, err
	}
	result.Matched = true
	result.EmployeeID = id
	return result, nil
}

// EnrollRequest describes a batch of face photos for one employee.
type EnrollRequest struct {
	EmployeeID           int64
	Images               [][]byte
	DenyIfExists         bool
	PreventDuplicateFace bool
	Threshold            float64
}

// EnrollResult is the recognition service's answer to an enrollment.
type EnrollResult struct {
	Status             string  `json:"status"`
	Message            string  `json:"message,omitempty"`
	Count              int     `json:"count,omitempty"`
	ExistingEmployeeID string  `json:"existing_employee_id,omitempty"`
	Score              float64 `json:"score,omitempty"`
	DuplicateThreshold float64 `json:"duplicate_threshold,omitempty"`
}

// Enroll schedules face enrollment for an employee.
// An already enrolled employee yields an *APIError with status 409.
func (c *Client) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResult, error) {
	if len(req.Images) == 0 {
		return nil, errors.New("no images to enroll")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := map[string]string{
		"emp_id":                 strconv.FormatInt(req.EmployeeID, 10),
		"deny_if_exists":         strconv.FormatBool(req.DenyIfExists),
		"prevent_duplicate_face": strconv.FormatBool(req.PreventDuplicateFace),
	}
	if req.Threshold > 0 {
		fields["threshold"] = strconv.FormatFloat(req.Threshold, 'f', -1, 64)
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}
	for i, img := range req.Images {
		if err := writeImagePart(writer, "files", fmt.Sprintf("face-%d.jpg", i+1), img); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	body, err := c.post(ctx, "/enroll", writer.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}

	var result EnrollResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	result.ExistingEmployeeID = strings.TrimPrefix(result.ExistingEmployeeID, employeeKeyPrefix)
	return &result, nil
}

// ParseEmployeeID parses an identity reported by the service ("employee:12" or "12").
func ParseEmployeeID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, employeeKeyPrefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid employee id %q: %w", s, err)
	}
	return id, nil
}

// writeImagePart adds an image part with an explicit Content-Type based on magic byte detection.
func writeImagePart(writer *multipart.Writer, field, filename string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", imageutil.DetectMIMEType(data))
	part, err := writer.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write image data: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorDetail(data)}
	}

	return data, nil
}

// errorDetail extracts {"detail": "..."} from an error body, falling back to the raw text.
func errorDetail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(payload.Detail); err == nil {
			return string(b)
		}
	}
	return strings.TrimSpace(string(body))
}
