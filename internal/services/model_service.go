package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/genai"

	"neuralnexus-pipeline/internal/config"
	"neuralnexus-pipeline/internal/models"
	"neuralnexus-pipeline/internal/pkg/logger"
	"neuralnexus-pipeline/internal/pkg/retry"
)

// ModelGateway wraps the language model provider. A provider refusal is a
// valid ModelResponse, not an error; the role strategy decides how to present
// it.
type ModelGateway interface {
	Invoke(ctx context.Context, request *models.ModelRequest) (*models.ModelResponse, error)
	HealthCheck(ctx context.Context) error
}

type GeminiService struct {
	client  *genai.Client
	breaker *gobreaker.CircuitBreaker
	policy  retry.Policy
	config  config.GeminiConfig
	logger  *logger.Logger
}

func NewGeminiService(cfg config.GeminiConfig, log *logger.Logger) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Gemini API key required")
	}

	ctx := context.Background()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "gemini",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	service := &GeminiService{
		client:  client,
		breaker: breaker,
		policy: retry.Policy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryDelay,
			MaxDelay:   8 * cfg.RetryDelay,
		},
		config: cfg,
		logger: log,
	}

	log.Info("Model Service Initialized Successfully - Gemini API",
		"model", cfg.Model,
		"max_tokens", cfg.MaxTokens,
		"max_retries", cfg.MaxRetries)

	return service, nil
}

// Invoke calls the model with retry on transient failures. Authentication
// failures and malformed-request rejections are surfaced immediately;
// retrying cannot change their outcome.
func (service *GeminiService) Invoke(ctx context.Context, request *models.ModelRequest) (*models.ModelResponse, error) {
	startTime := time.Now()
	attempts := 0

	response, err := retry.Do(ctx, service.policy, isTransientModelError, func() (*models.ModelResponse, error) {
		attempts++
		out, err := service.breaker.Execute(func() (interface{}, error) {
			return service.makeGenerationRequest(ctx, request)
		})
		if err != nil {
			return nil, err
		}
		return out.(*models.ModelResponse), nil
	})

	duration := time.Since(startTime)

	if err != nil {
		service.logger.LogService("gemini", "invoke", duration, map[string]interface{}{
			"model":          request.ModelID,
			"content_length": len(request.UserContent),
			"attempts":       attempts,
		}, err)

		if ctx.Err() != nil {
			return nil, models.NewCancelledError("model invocation cancelled").WithCause(ctx.Err())
		}

		var appErr *models.AppError
		if errors.As(err, &appErr) {
			switch appErr.Kind {
			case models.ErrKindAuthentication, models.ErrKindModelRequest:
				return nil, appErr
			}
		}
		return nil, models.NewModelRequestError("MODEL_UNAVAILABLE", "model provider is unavailable").WithCause(err)
	}

	service.logger.LogService("gemini", "invoke", duration, map[string]interface{}{
		"model":           request.ModelID,
		"content_length":  len(request.UserContent),
		"response_length": len(response.RawText),
		"finish_reason":   response.FinishReason,
		"attempts":        attempts,
	}, nil)

	return response, nil
}

func (service *GeminiService) makeGenerationRequest(ctx context.Context, request *models.ModelRequest) (*models.ModelResponse, error) {
	genCtx, cancel := context.WithTimeout(ctx, service.config.Timeout)
	defer cancel()

	temperature := float32(request.Temperature)
	maxTokens := int32(request.MaxTokens)

	genConfig := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: maxTokens,
	}
	if request.SystemInstructions != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(request.SystemInstructions, genai.RoleUser)
	}

	modelID := request.ModelID
	if modelID == "" {
		modelID = service.config.Model
	}

	result, err := service.client.Models.GenerateContent(genCtx, modelID, genai.Text(request.UserContent), genConfig)
	if err != nil {
		return nil, classifyModelError(err)
	}

	if len(result.Candidates) == 0 {
		return nil, models.WrapExternalError("GEMINI", errors.New("no response candidates generated"))
	}

	candidate := result.Candidates[0]

	text := ""
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			text += part.Text
		}
	}

	return &models.ModelResponse{
		RawText:      text,
		FinishReason: mapFinishReason(candidate.FinishReason, text),
	}, nil
}

// classifyModelError splits provider failures into the retryable transient
// band (429, 5xx, network, timeout) and the fatal band (auth, other 4xx).
func classifyModelError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return models.NewAuthenticationError("model provider rejected the credentials").WithCause(err)
		case apiErr.Code == 429 || apiErr.Code >= 500:
			return models.WrapExternalError("GEMINI", err)
		case apiErr.Code >= 400:
			return models.NewModelRequestError("MODEL_BAD_REQUEST", "model provider rejected the request").WithCause(err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewTimeoutError("GEMINI_TIMEOUT", "model invocation timed out").WithCause(err)
	}

	return models.WrapExternalError("GEMINI", err)
}

func isTransientModelError(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == models.ErrKindExternal || appErr.Kind == models.ErrKindTimeout
	}
	return true
}

// mapFinishReason folds the provider's finish indicators into the three the
// pipeline understands. A refusal passes through as a response.
func mapFinishReason(reason genai.FinishReason, text string) models.FinishReason {
	switch reason {
	case genai.FinishReasonStop:
		return models.FinishComplete
	case genai.FinishReasonMaxTokens:
		return models.FinishTruncated
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return models.FinishRefused
	default:
		if text == "" {
			return models.FinishRefused
		}
		return models.FinishComplete
	}
}

func (service *GeminiService) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	request := &models.ModelRequest{
		ModelID:     service.config.Model,
		UserContent: "Respond with 'OK' if you can process this request",
		MaxTokens:   10,
	}

	resp, err := service.makeGenerationRequest(checkCtx, request)
	if err != nil {
		return fmt.Errorf("model health check failed: %w", err)
	}
	if resp.RawText == "" {
		return errors.New("model health check returned an empty response")
	}
	return nil
}

func (service *GeminiService) Close() error {
	service.logger.Info("Gemini client closed")
	return nil
}
