// Package imagegen provides the image model client. The model exposes a
// prediction-style API: submit a prompt, poll until the prediction settles,
// read the output image URL.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PixelMint-Labs/art_layer/internal/logging"
)

// Generator produces an image for a text prompt and returns its URL.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client talks to the prediction API.
type Client struct {
	baseURL      string
	apiToken     string
	modelVersion string
	pollInterval time.Duration
	httpClient   *http.Client
	log          *logging.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL      string
	APIToken     string
	ModelVersion string
	Timeout      time.Duration
	PollInterval time.Duration
}

// NewClient creates an image model client.
func NewClient(cfg Config, log *logging.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("image model base URL required")
	}
	if cfg.ModelVersion == "" {
		return nil, fmt.Errorf("image model version required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 2 * time.Second
	}
	if log == nil {
		log = logging.New("imagegen")
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		apiToken:     cfg.APIToken,
		modelVersion: cfg.ModelVersion,
		pollInterval: pollInterval,
		httpClient:   &http.Client{Timeout: timeout},
		log:          log,
	}, nil
}

type predictionInput struct {
	Prompt            string  `json:"prompt"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	NumOutputs        int     `json:"num_outputs"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
}

type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error,omitempty"`
}

// Generate submits the prompt and polls the prediction until it settles or
// ctx expires. Returns the output image URL.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	pred, err := c.createPrediction(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.log.WithContext(ctx).WithFields(map[string]interface{}{
		"prediction_id": pred.ID,
	}).Debug("prediction created")

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		switch pred.Status {
		case "succeeded":
			return c.outputURL(pred)
		case "failed", "canceled":
			return "", fmt.Errorf("prediction %s %s: %s", pred.ID, pred.Status, pred.Error)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		pred, err = c.getPrediction(ctx, pred.ID)
		if err != nil {
			return "", err
		}
	}
}

func (c *Client) createPrediction(ctx context.Context, prompt string) (prediction, error) {
	body := predictionRequest{
		Version: c.modelVersion,
		Input: predictionInput{
			Prompt:            prompt,
			Width:             768,
			Height:            768,
			NumOutputs:        1,
			NumInferenceSteps: 25,
			GuidanceScale:     7.5,
		},
	}
	return c.do(ctx, http.MethodPost, "/v1/predictions", body)
}

func (c *Client) getPrediction(ctx context.Context, id string) (prediction, error) {
	return c.do(ctx, http.MethodGet, "/v1/predictions/"+id, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (prediction, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return prediction{}, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return prediction{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return prediction{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return prediction{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return prediction{}, fmt.Errorf("model API status %d: %s", resp.StatusCode, respBody)
	}

	var pred prediction
	if err := json.Unmarshal(respBody, &pred); err != nil {
		return prediction{}, fmt.Errorf("unmarshal prediction: %w", err)
	}
	return pred, nil
}

// outputURL extracts the image URL; the API returns either a bare string or
// an array of strings.
func (c *Client) outputURL(pred prediction) (string, error) {
	var single string
	if err := json.Unmarshal(pred.Output, &single); err == nil && single != "" {
		return single, nil
	}
	var many []string
	if err := json.Unmarshal(pred.Output, &many); err == nil && len(many) > 0 && many[0] != "" {
		return many[0], nil
	}
	return "", fmt.Errorf("prediction %s returned no usable image URL", pred.ID)
}
