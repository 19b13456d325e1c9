package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	symptomsPath = "/predict-symptoms/"
	imagePath    = "/predict-image/"

	// maxErrorBody caps how much of a failed response ends up in an error message.
	maxErrorBody = 512
)

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// HTTPClient is the Client for the prediction service's HTTP API.
type HTTPClient struct {
	baseURL    string
	version    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

type HTTPOption func(*HTTPClient)

// WithTimeout bounds every request. Zero means no timeout.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		c.timeout = timeout
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(httpClient *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.httpClient = httpClient
	}
}

// WithVersion sets the version advertised in the User-Agent header.
func WithVersion(version string) HTTPOption {
	return func(c *HTTPClient) {
		c.version = version
	}
}

func NewHTTPClient(baseURL string, logger *zap.Logger, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: "dev",
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newServiceHTTPClient(c.version)
	}
	if c.timeout > 0 {
		// the caller's client may be shared, e.g. http.DefaultClient
		withTimeout := *c.httpClient
		withTimeout.Timeout = c.timeout
		c.httpClient = &withTimeout
	}
	return c
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) PredictFromSymptoms(ctx context.Context, symptoms string) (string, error) {
	payload, err := json.Marshal(symptomRequest{Symptoms: symptoms})
	if err != nil {
		return "", fmt.Errorf("%w: encode symptoms: %w", ErrPrediction, err)
	}

	c.logger.Debug("requesting symptom prediction", zap.String("symptoms", symptoms))

	return c.post(ctx, symptomsPath, "application/json", bytes.NewReader(payload))
}

func (c *HTTPClient) PredictFromImage(ctx context.Context, file *ImageFile) (string, error) {
	if file == nil {
		return "", fmt.Errorf("%w: no image", ErrPrediction)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(file.Name)))
	hdr.Set("Content-Type", contentType)

	part, err := writer.CreatePart(hdr)
	if err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("%w: create upload form: %w", ErrPrediction, err)
	}
	if _, err := part.Write(file.Content); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("%w: write image content: %w", ErrPrediction, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%w: finish upload form: %w", ErrPrediction, err)
	}

	c.logger.Debug(
		"requesting image prediction",
		zap.String("file", file.Name),
		zap.String("content_type", contentType),
		zap.Int("size", file.Size()),
	)

	return c.post(ctx, imagePath, writer.FormDataContentType(), &body)
}

// Health checks that the service answers on its root endpoint.
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("prediction service at %s is not reachable: %w", c.baseURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("prediction service at %s returned status %d", c.baseURL, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, contentType string, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", ErrPrediction, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: POST %s: %w", ErrPrediction, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrPrediction, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: POST %s returned status %d: %s", ErrPrediction, path, resp.StatusCode, truncateBody(respBody))
	}

	disease, err := parseDisease(respBody)
	if err != nil {
		return "", err
	}

	c.logger.Debug("prediction received", zap.String("path", path), zap.String("disease", disease))
	return disease, nil
}

// parseDisease extracts the "disease" label from a response body.
func parseDisease(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: response is not valid JSON: %s", ErrPrediction, truncateBody(body))
	}

	result := gjson.GetBytes(body, "disease")
	if !result.Exists() {
		return "", fmt.Errorf("%w: response has no disease field", ErrPrediction)
	}
	if result.Type != gjson.String {
		return "", fmt.Errorf("%w: disease field is %s, not a string", ErrPrediction, result.Type)
	}

	return result.String(), nil
}

func truncateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		return text[:maxErrorBody] + "..."
	}
	return text
}
