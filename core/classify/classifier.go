// Package classify wraps the advisory classification service. Suggestions
// never gate incident creation; any failure degrades to the default
// classification.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"relato/config"
	"relato/core/utils"
)

type Classification struct {
	Category      string   `json:"category"`
	Priority      string   `json:"priority"`
	EstimatedTime string   `json:"estimated_time,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	Department    string   `json:"department,omitempty"`
}

type Classifier interface {
	Classify(ctx context.Context, title, description string) (*Classification, error)
}

// Default is the fallback applied when the classifier is disabled or fails.
func Default() *Classification {
	return &Classification{
		Category:      "system",
		Priority:      "medium",
		EstimatedTime: "1-3 days",
		Department:    "it",
	}
}

// Suggest never fails: it normalizes the classifier output and falls back to
// Default on any error or unusable reply.
func Suggest(ctx context.Context, c Classifier, title, description string, logger *utils.Logger) *Classification {
	if c == nil {
		return Default()
	}
	res, err := c.Classify(ctx, title, description)
	if err != nil || res == nil {
		if logger != nil && err != nil {
			logger.Printf("classify: falling back to default: %v", err)
		}
		return Default()
	}
	out := *res
	out.Category = strings.ToLower(strings.TrimSpace(out.Category))
	out.Priority = strings.ToLower(strings.TrimSpace(out.Priority))
	if out.Category == "" {
		out.Category = Default().Category
	}
	switch out.Priority {
	case "low", "medium", "high", "critical":
	default:
		out.Priority = Default().Priority
	}
	return &out
}

// HTTPClassifier posts title and description to a JSON endpoint and expects a
// Classification back.
type HTTPClassifier struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPClassifier(cfg config.ClassifierConfig) *HTTPClassifier {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClassifier{
		endpoint: strings.TrimSpace(cfg.Endpoint),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, title, description string) (*Classification, error) {
	if c == nil || c.endpoint == "" {
		return nil, fmt.Errorf("classifier endpoint not configured")
	}
	payload, err := json.Marshal(map[string]string{
		"title":       title,
		"description": description,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}
	var out Classification
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Disabled returns the default classification without any network call.
type Disabled struct{}

func (Disabled) Classify(ctx context.Context, title, description string) (*Classification, error) {
	return Default(), nil
}

// FromConfig picks the classifier implementation for the deployment.
func FromConfig(cfg config.ClassifierConfig) Classifier {
	if !cfg.Enabled || strings.TrimSpace(cfg.Endpoint) == "" {
		return Disabled{}
	}
	return NewHTTPClassifier(cfg)
}
