package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/healthmate/core/internal/config"
	"go.uber.org/zap"
)

// Service runs the full analysis pipeline: fetch content, build the prompt,
// walk the candidate endpoints, normalize the response.
type Service struct {
	resolver *Resolver
	fetcher  *Fetcher
	client   *Client
	log      *zap.Logger
}

func New(cfg config.GeminiConfig, cloudName string, log *zap.Logger) *Service {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &Service{
		resolver: NewResolver(cfg.Model),
		fetcher:  NewFetcher(cloudName, timeout, log),
		client:   NewClient(cfg.BaseURL, cfg.APIKey, timeout),
		log:      log,
	}
}

// NewWithParts wires a service from explicit components.
func NewWithParts(resolver *Resolver, fetcher *Fetcher, client *Client, log *zap.Logger) *Service {
	return &Service{resolver: resolver, fetcher: fetcher, client: client, log: log}
}

// AnalyzeFile analyzes one uploaded report file and returns the normalized
// insight plus the verbatim model response.
func (s *Service) AnalyzeFile(ctx context.Context, input AnalyzeFileInput) (*ReportResult, error) {
	parts := []generatePart{{Text: buildReportPrompt(input.Title)}}

	filePart := s.fetcher.Fetch(ctx, input.FileURL, input.FileType, input.FilePublicID)
	if filePart.Degraded() {
		parts = append(parts, generatePart{
			Text: "File URL for analysis (fetch if allowed): " + filePart.RefURL,
		})
	} else {
		parts = append(parts, generatePart{InlineData: filePart.Inline})
	}

	resp, raw, err := s.generate(ctx, parts)
	if err != nil {
		return nil, err
	}
	return &ReportResult{
		Insight: NormalizeReport(resp.Text()),
		Raw:     raw,
	}, nil
}

// AnalyzeVitals analyzes one vitals snapshot.
func (s *Service) AnalyzeVitals(ctx context.Context, input AnalyzeVitalsInput) (*VitalsResult, error) {
	parts := []generatePart{{Text: buildVitalsPrompt(input.Title, input.Values)}}

	resp, raw, err := s.generate(ctx, parts)
	if err != nil {
		return nil, err
	}
	return &VitalsResult{
		Insight: NormalizeVitals(resp.Text()),
		Raw:     raw,
	}, nil
}

// generate walks the candidate sequence. Only ModelUnavailableError advances
// to the next candidate; any other failure aborts immediately. When every
// candidate reports not-found the whole attempt fails with ExhaustedError.
func (s *Service) generate(ctx context.Context, parts []generatePart) (*generateResponse, json.RawMessage, error) {
	body := &generateRequest{
		Contents: []generateContent{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature: 0.2,
			TopK:        40,
			TopP:        0.95,
		},
	}

	var lastUnavailable *ModelUnavailableError
	for _, cand := range s.resolver.Candidates() {
		resp, raw, err := s.client.Send(ctx, cand, body)
		if err == nil {
			return resp, raw, nil
		}

		var unavailable *ModelUnavailableError
		if errors.As(err, &unavailable) {
			lastUnavailable = unavailable
			if s.log != nil {
				s.log.Debug("model not found, trying next candidate",
					zap.String("candidate", cand.String()))
			}
			continue
		}
		return nil, nil, err
	}

	exhausted := &ExhaustedError{Detail: "model not found"}
	if lastUnavailable != nil {
		exhausted.Endpoint = lastUnavailable.Endpoint
		exhausted.Detail = lastUnavailable.Detail
	}
	return nil, nil, exhausted
}
