package models

import (
	"strings"
	"time"
)

// PromptContext is built fresh per request and never mutated after creation.
// Confidence describes the scored source set; its zero value means no search
// ran.
type PromptContext struct {
	Role       Role
	Query      string
	Sources    []Source
	Confidence SearchConfidence
}

// ModelRequest is derived deterministically from a PromptContext by the role
// strategy.
type ModelRequest struct {
	ModelID            string
	SystemInstructions string
	UserContent        string
	MaxTokens          int
	Temperature        float64
}

type FinishReason string

const (
	FinishComplete  FinishReason = "complete"
	FinishTruncated FinishReason = "truncated"
	FinishRefused   FinishReason = "refused"
)

type ModelResponse struct {
	RawText      string
	FinishReason FinishReason
}

type Verdict string

const (
	VerdictSupported    Verdict = "supported"
	VerdictRefuted      Verdict = "refuted"
	VerdictUnverifiable Verdict = "unverifiable"
	VerdictMixed        Verdict = "mixed"
)

// ParseVerdict maps a raw token to a verdict. Unknown or empty tokens map to
// unverifiable; a missing marker must never fail the request.
func ParseVerdict(token string) Verdict {
	switch Verdict(strings.ToLower(strings.TrimSpace(token))) {
	case VerdictSupported:
		return VerdictSupported
	case VerdictRefuted:
		return VerdictRefuted
	case VerdictMixed:
		return VerdictMixed
	default:
		return VerdictUnverifiable
	}
}

// Result is the externally visible output, immutable once constructed.
// Verdict is only populated by the fact-check role. DegradedSearch marks a
// successful answer produced after a search outage.
type Result struct {
	Role           Role          `json:"role"`
	AnswerText     string        `json:"answer_text"`
	CitedSources   []Source      `json:"cited_sources"`
	Verdict        Verdict       `json:"verdict,omitempty"`
	DegradedSearch bool          `json:"degraded_search,omitempty"`
	RequestID      string        `json:"request_id"`
	Duration       time.Duration `json:"duration_ns,omitempty"`
}
