// Package extraction talks to the Gemini generateContent API to turn Greek
// availability text into domain.Availability.
package extraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/ougirez/aedsync/internal/config"
	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/pkg/constants"
	"github.com/ougirez/aedsync/internal/pkg/logger"
	"github.com/ougirez/aedsync/internal/pkg/metrics"
	"github.com/ougirez/aedsync/internal/pkg/retry"
	"github.com/ougirez/aedsync/internal/pkg/utils"
)

const methodGenerateContent = "generateContent"

// StatusError is a non-200 answer of the generative service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Code, e.Body)
}

type Client struct {
	cfg    config.ExtractionConfig
	policy retry.Policy
	do     func(*http.Request) (*http.Response, error)
	model  string
}

// NewClient fails with constants.ErrMissingCredential when no API key is set.
func NewClient(cfg config.ExtractionConfig, hc *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: set %s", constants.ErrMissingCredential, constants.EnvGeminiAPIKey)
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:    cfg,
		policy: NewPolicy(cfg.Retry),
		do:     hc.Do,
	}, nil
}

func NewPolicy(rc config.RetryConfig) retry.Policy {
	return retry.Policy{
		BaseDelay:   rc.BaseDelay,
		JitterMin:   rc.JitterMin,
		JitterMax:   rc.JitterMax,
		ErrorDelay:  rc.ErrorDelay,
		Escalation:  rc.Escalation,
		MaxAttempts: rc.MaxAttempts,
	}
}

// Model is the model chosen by SelectModel.
func (c *Client) Model() string {
	return c.model
}

type listModelsResponse struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
	NextPageToken string `json:"nextPageToken"`
}

// SelectModel picks the first preferred model that supports generateContent,
// else the first such model the service lists. Any failure here is
// constants.ErrNoUsableModel: the batch cannot start without a model.
func (c *Client) SelectModel(ctx context.Context) (string, error) {
	valid, err := c.listModels(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", constants.ErrNoUsableModel, err)
	}
	if len(valid) == 0 {
		return "", fmt.Errorf("%w: no model supports %s", constants.ErrNoUsableModel, methodGenerateContent)
	}

	c.model = valid[0]
	for _, pref := range c.cfg.PreferredModels {
		if slices.Contains(valid, pref) {
			c.model = pref
			logger.Infof(ctx, "selected model %s", pref)
			return pref, nil
		}
	}

	logger.Warnf(ctx, "no preferred models found, using fallback %s", c.model)
	return c.model, nil
}

func (c *Client) listModels(ctx context.Context) ([]string, error) {
	var valid []string
	pageToken := ""

	for {
		q := url.Values{"key": {c.cfg.APIKey}}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/models?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		body, err := c.send(req)
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}

		var page listModelsResponse
		if err = utils.JSON.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode models: %w", err)
		}

		for _, m := range page.Models {
			if slices.Contains(m.SupportedGenerationMethods, methodGenerateContent) {
				valid = append(valid, m.Name)
			}
		}

		if page.NextPageToken == "" {
			return valid, nil
		}
		pageToken = page.NextPageToken
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string                 `json:"responseMimeType"`
	ResponseSchema   map[string]interface{} `json:"responseSchema"`
	Temperature      float64                `json:"temperature"`
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction content          `json:"systemInstruction"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Extract returns the structured availability of text. Retryable failures are
// retried per policy; the returned error wraps constants.ErrTransientService
// once the budget is spent, or constants.ErrFatalService for failures that
// retrying cannot fix.
func (c *Client) Extract(ctx context.Context, text string) (*domain.Availability, error) {
	if c.model == "" {
		return nil, fmt.Errorf("%w: SelectModel was not called", constants.ErrNoUsableModel)
	}

	payload, err := utils.JSON.Marshal(generateRequest{
		Contents:          []content{{Parts: []part{{Text: text}}}},
		SystemInstruction: content{Parts: []part{{Text: systemInstruction}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
			Temperature:      c.cfg.Temperature,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var result *domain.Availability
	err = retry.Do(ctx, c.policy, func(attempt int) error {
		av, genErr := c.generate(ctx, payload, text)
		if genErr != nil {
			return genErr
		}
		result = av
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		metrics.ExtractionRetries.WithLabelValues(retryReason(err)).Inc()
		logger.Warnf(ctx, "attempt %d/%d failed: %s; retrying in %.1fs",
			attempt, c.policy.MaxAttempts, err.Error(), wait.Seconds())
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, constants.ErrFatalService) && !errors.Is(err, constants.ErrTransientService) {
			err = fmt.Errorf("%w: %w", constants.ErrTransientService, err)
		}
		return nil, err
	}

	return result, nil
}

// generate performs a single call. The error it returns carries the retry
// classification.
func (c *Client) generate(ctx context.Context, payload []byte, text string) (*domain.Availability, error) {
	endpoint := fmt.Sprintf("%s/%s:%s?%s", c.cfg.BaseURL, c.model, methodGenerateContent,
		url.Values{"key": {c.cfg.APIKey}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.send(req)
	if err != nil {
		var se *StatusError
		if !errors.As(err, &se) {
			return nil, err
		}
		switch {
		case slices.Contains(c.cfg.Retry.EscalateStatuses, se.Code):
			return nil, retry.Escalating(fmt.Errorf("%w: %w", constants.ErrTransientService, se))
		case slices.Contains(c.cfg.Retry.RetryStatuses, se.Code):
			return nil, retry.Transient(fmt.Errorf("%w: %w", constants.ErrTransientService, se))
		default:
			return nil, retry.Permanent(fmt.Errorf("%w: %w", constants.ErrFatalService, se))
		}
	}

	var gr generateResponse
	if err = utils.JSON.Unmarshal(body, &gr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("response has no candidates")
	}

	var av domain.Availability
	if err = utils.JSON.UnmarshalFromString(gr.Candidates[0].Content.Parts[0].Text, &av); err != nil {
		return nil, fmt.Errorf("decode availability: %w", err)
	}

	av.Normalize(text)
	if err = av.Validate(); err != nil {
		// при нулевой температуре модель вернёт то же самое, повтор бесполезен
		return nil, retry.Permanent(fmt.Errorf("%w: %w", constants.ErrFatalService, err))
	}

	return &av, nil
}

// send returns the body of a 200 answer, or a *StatusError.
func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.do(req)
	if err != nil {
		// url.Error repeats the URL, which carries the key
		var ue *url.Error
		if errors.As(err, &ue) {
			return nil, fmt.Errorf("%s request failed: %w", req.Method, ue.Err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: snip(body)}
	}

	return body, nil
}

func retryReason(err error) string {
	switch retry.KindOf(err) {
	case retry.KindEscalating:
		return "rate_limited"
	case retry.KindTransient:
		return "server_error"
	default:
		return "error"
	}
}

func snip(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > constants.ResponseBodySnip {
		s = s[:constants.ResponseBodySnip]
	}
	return s
}
