package services

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"neuralnexus-pipeline/internal/models"
)

func TestClassifyModelError(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantKind models.ErrorKind
	}{
		{"unauthorized", genai.APIError{Code: 401, Message: "invalid key"}, models.ErrKindAuthentication},
		{"forbidden", genai.APIError{Code: 403, Message: "no access"}, models.ErrKindAuthentication},
		{"rate limited", genai.APIError{Code: 429, Message: "slow down"}, models.ErrKindExternal},
		{"server error", genai.APIError{Code: 500, Message: "boom"}, models.ErrKindExternal},
		{"service unavailable", genai.APIError{Code: 503, Message: "overloaded"}, models.ErrKindExternal},
		{"bad request", genai.APIError{Code: 400, Message: "malformed"}, models.ErrKindModelRequest},
		{"not found", genai.APIError{Code: 404, Message: "no such model"}, models.ErrKindModelRequest},
		{"deadline", context.DeadlineExceeded, models.ErrKindTimeout},
		{"network", errors.New("connection reset"), models.ErrKindExternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classified := classifyModelError(tc.err)
			if !models.IsKind(classified, tc.wantKind) {
				t.Errorf("classifyModelError(%v) kind = %v, want %v", tc.err, classified, tc.wantKind)
			}
		})
	}
}

func TestClassifyModelErrorRetryability(t *testing.T) {
	// Authentication and malformed-request kinds must stop the retry loop;
	// rate limits, 5xx, timeouts and raw network errors must stay in it.
	permanent := []error{
		classifyModelError(genai.APIError{Code: 401}),
		classifyModelError(genai.APIError{Code: 403}),
		classifyModelError(genai.APIError{Code: 400}),
	}
	for _, err := range permanent {
		if isTransientModelError(err) {
			t.Errorf("Expected %v to be permanent", err)
		}
	}

	transient := []error{
		classifyModelError(genai.APIError{Code: 429}),
		classifyModelError(genai.APIError{Code: 502}),
		classifyModelError(context.DeadlineExceeded),
		classifyModelError(errors.New("connection reset")),
	}
	for _, err := range transient {
		if !isTransientModelError(err) {
			t.Errorf("Expected %v to be transient", err)
		}
	}
}

func TestMapFinishReason(t *testing.T) {
	cases := []struct {
		name   string
		reason genai.FinishReason
		text   string
		want   models.FinishReason
	}{
		{"stop", genai.FinishReasonStop, "answer", models.FinishComplete},
		{"max tokens", genai.FinishReasonMaxTokens, "truncated answ", models.FinishTruncated},
		{"safety", genai.FinishReasonSafety, "", models.FinishRefused},
		{"recitation", genai.FinishReasonRecitation, "", models.FinishRefused},
		{"unknown with text", genai.FinishReason("OTHER"), "partial answer", models.FinishComplete},
		{"unknown without text", genai.FinishReason("OTHER"), "", models.FinishRefused},
		{"unspecified empty", genai.FinishReasonUnspecified, "", models.FinishRefused},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapFinishReason(tc.reason, tc.text); got != tc.want {
				t.Errorf("mapFinishReason(%q, %q) = %q, want %q", tc.reason, tc.text, got, tc.want)
			}
		})
	}
}
