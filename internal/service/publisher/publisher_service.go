package publisher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/ougirez/aedsync/internal/config"
	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/domain/dto"
	"github.com/ougirez/aedsync/internal/pkg/constants"
	"github.com/ougirez/aedsync/internal/pkg/logger"
	"github.com/ougirez/aedsync/internal/pkg/metrics"
	"github.com/ougirez/aedsync/internal/pkg/utils"
)

// Service submits the reconciled dataset to the ingestion endpoint in one
// request. There is no retry: a failed publish is logged and reported.
type Service struct {
	cfg    config.BackendConfig
	client *http.Client
}

func NewPublisherService(cfg config.BackendConfig, client *http.Client) *Service {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Service{cfg: cfg, client: client}
}

func (s *Service) Publish(ctx context.Context, aeds []domain.AED) error {
	if aeds == nil {
		aeds = []domain.AED{}
	}

	body, err := utils.JSON.Marshal(dto.Envelope{AEDs: aeds})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	logger.Infof(ctx, "sending %d AEDs to backend %s", len(aeds), s.cfg.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.Published.WithLabelValues("error").Inc()
		logger.Errorf(ctx, "failed to update AED data: %s", err.Error())
		return fmt.Errorf("publish: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, constants.ResponseBodySnip))
		metrics.Published.WithLabelValues("rejected").Inc()
		logger.Errorf(ctx, "failed to update AED data: status %d; %s", resp.StatusCode, string(snippet))
		return fmt.Errorf("publish: backend answered %d", resp.StatusCode)
	}

	metrics.Published.WithLabelValues("ok").Inc()
	logger.Infof(ctx, "backend accepted %d AEDs", len(aeds))
	return nil
}
