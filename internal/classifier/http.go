package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/Veraticus/dosewatch/internal/common"
	"github.com/Veraticus/dosewatch/internal/model"
	"github.com/Veraticus/dosewatch/internal/service"
)

// Manifest validation errors.
var (
	ErrUnsupportedScheme = errors.New("classifier URL must be http or https")
	ErrNoLabels          = errors.New("manifest lists no labels")
	ErrMissingNoPill     = errors.New("manifest labels must include no_pill")
	ErrNoEndpoint        = errors.New("manifest has no endpoint")
)

const maxResponseBytes = 1 << 20

// Manifest describes a remote classifier.
type Manifest struct {
	Name     string                 `json:"name"`
	Endpoint string                 `json:"endpoint"`
	Labels   []model.DetectionLabel `json:"labels"`
}

// Validate checks the manifest's labels and endpoint.
func (m Manifest) Validate() error {
	if len(m.Labels) == 0 {
		return ErrNoLabels
	}
	for _, l := range m.Labels {
		if !l.IsCanonical() {
			return fmt.Errorf("label %q is not canonical", l)
		}
	}
	if !slices.Contains(m.Labels, model.LabelNoPill) {
		return ErrMissingNoPill
	}
	if m.Endpoint == "" {
		return ErrNoEndpoint
	}
	return nil
}

// HTTPLoader fetches manifests over HTTP.
type HTTPLoader struct {
	httpClient *http.Client
	retry      service.RetryOptions
}

// NewHTTPLoader creates a loader whose requests time out after timeout.
func NewHTTPLoader(timeout time.Duration, retry service.RetryOptions) *HTTPLoader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPLoader{
		retry: retry,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Load fetches and validates the manifest at configURL. Every failure is a
// *common.ClassifierLoadError.
func (l *HTTPLoader) Load(ctx context.Context, configURL string) (service.Classifier, error) {
	base, err := url.Parse(configURL)
	if err != nil {
		return nil, &common.ClassifierLoadError{URL: configURL, Err: err}
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, &common.ClassifierLoadError{URL: configURL, Err: ErrUnsupportedScheme}
	}

	var manifest Manifest
	err = common.WithRetry(ctx, func() error {
		m, fetchErr := l.fetchManifest(ctx, configURL)
		if fetchErr != nil {
			return fetchErr
		}
		manifest = m
		return nil
	}, l.retry)
	if err != nil {
		return nil, &common.ClassifierLoadError{URL: configURL, Err: err}
	}

	if err := manifest.Validate(); err != nil {
		return nil, &common.ClassifierLoadError{URL: configURL, Err: err}
	}

	endpoint, err := base.Parse(manifest.Endpoint)
	if err != nil {
		return nil, &common.ClassifierLoadError{URL: configURL, Err: fmt.Errorf("invalid endpoint: %w", err)}
	}

	slog.Info("Loaded classifier",
		"name", manifest.Name,
		"labels", len(manifest.Labels),
		"endpoint", endpoint.String())

	return &remoteClassifier{
		httpClient: l.httpClient,
		name:       manifest.Name,
		endpoint:   endpoint.String(),
		labels:     slices.Clone(manifest.Labels),
	}, nil
}

func (l *HTTPLoader) fetchManifest(ctx context.Context, configURL string) (Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, configURL, nil)
	if err != nil {
		return Manifest{}, common.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return Manifest{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("manifest request failed (status %d): %s", resp.StatusCode, string(body))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return Manifest{}, statusErr
		}
		return Manifest{}, common.Permanent(statusErr)
	}

	var manifest Manifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return Manifest{}, common.Permanent(fmt.Errorf("failed to parse manifest: %w", err))
	}
	return manifest, nil
}

// remoteClassifier posts frames to a manifest's endpoint.
type remoteClassifier struct {
	httpClient *http.Client
	name       string
	endpoint   string
	labels     []model.DetectionLabel
}

func (c *remoteClassifier) Labels() []model.DetectionLabel {
	return slices.Clone(c.labels)
}

// Predict returns the endpoint's predictions for frame.
func (c *remoteClassifier) Predict(ctx context.Context, frame model.Frame) ([]model.Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(frame.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	contentType := frame.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s inference error (status %d): %s", c.name, resp.StatusCode, string(body))
	}

	var predictions []model.Prediction
	if err := json.Unmarshal(body, &predictions); err != nil {
		return nil, fmt.Errorf("failed to parse predictions: %w", err)
	}

	out := predictions[:0]
	for _, p := range predictions {
		if !p.Label.IsCanonical() || p.Confidence < 0 || p.Confidence > 1 {
			slog.Debug("Dropping malformed prediction", "label", p.Label, "probability", p.Confidence)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
