package rules

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/menoncello/triage/internal/models"
)

// ErrInvalidRuleImport is returned when the import payload is not valid
// JSON. Structurally invalid individual rules are filtered, not raised.
var ErrInvalidRuleImport = errors.New("invalid rule import")

// ExportRules serializes a ruleset as indented JSON.
func ExportRules(ruleset []*models.PrioritizationRule) ([]byte, error) {
	if ruleset == nil {
		ruleset = []*models.PrioritizationRule{}
	}
	data, err := json.MarshalIndent(ruleset, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal rules: %w", err)
	}
	return data, nil
}

// ImportRules parses a JSON ruleset. Rules failing structural validation
// are silently dropped rather than failing the whole batch; only
// unparseable JSON is an error.
func ImportRules(data []byte) ([]*models.PrioritizationRule, error) {
	var parsed []*models.PrioritizationRule
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRuleImport, err)
	}

	out := make([]*models.PrioritizationRule, 0, len(parsed))
	for _, r := range parsed {
		if r == nil {
			continue
		}
		if ValidateRule(r).Valid {
			out = append(out, r)
		}
	}
	return out, nil
}
