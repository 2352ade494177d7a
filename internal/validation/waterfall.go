package validation

import (
	"strings"

	"github.com/equitydesk/captable-backend/internal/api/request"
)

// Scenario economics (exit value, cost fractions, cap sanity) are validated
// by the distribution engine; these validators only cover request shape.

func ValidateDistribute(req request.DistributeRequest) error {
	errors := make(map[string]string)

	if _, err := ParseDate(req.AsOf); err != nil {
		errors["as_of"] = "as_of must be a YYYY-MM-DD date"
	}
	if strings.TrimSpace(req.Scenario.ID) == "" {
		errors["scenario.id"] = "scenario id is required"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

func ValidateDistributeScenarios(req request.DistributeScenariosRequest) error {
	errors := make(map[string]string)

	if _, err := ParseDate(req.AsOf); err != nil {
		errors["as_of"] = "as_of must be a YYYY-MM-DD date"
	}
	if len(req.Scenarios) == 0 {
		errors["scenarios"] = "at least one scenario is required"
	}

	seen := make(map[string]bool, len(req.Scenarios))
	for _, sc := range req.Scenarios {
		if strings.TrimSpace(sc.ID) == "" {
			errors["scenarios"] = "every scenario needs an id"
			break
		}
		if seen[sc.ID] {
			errors["scenarios"] = "scenario ids must be unique"
			break
		}
		seen[sc.ID] = true
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
