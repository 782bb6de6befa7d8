package models

import (
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleResearch        Role = "research"
	RoleFactCheck       Role = "fact_check"
	RoleTechnicalExpert Role = "technical_expert"
	RoleCreativeWriter  Role = "creative_writer"
)

func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleResearch:
		return RoleResearch, nil
	case RoleFactCheck:
		return RoleFactCheck, nil
	case RoleTechnicalExpert:
		return RoleTechnicalExpert, nil
	case RoleCreativeWriter:
		return RoleCreativeWriter, nil
	default:
		return "", NewValidationError("unknown role: " + raw)
	}
}

func AllRoles() []Role {
	return []Role{RoleResearch, RoleFactCheck, RoleTechnicalExpert, RoleCreativeWriter}
}

// Stage values follow the per-request state machine. Prompting and
// post-processing are pure and cannot reach StageFailed.
type Stage string

const (
	StagePending        Stage = "pending"
	StageSearching      Stage = "searching"
	StagePrompting      Stage = "prompting"
	StageInvoking       Stage = "invoking"
	StagePostProcessing Stage = "post_processing"
	StageDone           Stage = "done"
	StageFailed         Stage = "failed"
)

// NormalizeQuery trims the query and truncates it at maxLen runes. Over-long
// input is truncated rather than rejected; only an empty query is an error.
func NormalizeQuery(raw string, maxLen int) (string, error) {
	query := strings.TrimSpace(raw)
	if query == "" {
		return "", NewValidationError("query must not be empty")
	}

	if maxLen > 0 {
		runes := []rune(query)
		if len(runes) > maxLen {
			query = strings.TrimSpace(string(runes[:maxLen]))
		}
	}

	return query, nil
}

func GenerateRequestID() string {
	return uuid.New().String()
}
