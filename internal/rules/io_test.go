package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menoncello/triage/internal/models"
)

func TestExportImport_RoundTrip(t *testing.T) {
	original := []*models.PrioritizationRule{
		rule("r1", 0.8, 1, securityCondition(), adjust(2)),
		rule("r2", 0.5, 2, []models.RuleCondition{
			{Field: "issue.filePath", Operator: models.OpRegex, Value: `_test\.go$`},
		}, []models.RuleAction{{Type: models.ActionSkipTriage}}),
	}

	data, err := ExportRules(original)
	require.NoError(t, err)

	imported, err := ImportRules(data)
	require.NoError(t, err)

	require.Len(t, imported, 2)
	assert.Equal(t, original[0], imported[0])
	assert.Equal(t, original[1], imported[1])
}

func TestExportRules_NilRuleset(t *testing.T) {
	data, err := ExportRules(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestImportRules_BadJSON(t *testing.T) {
	_, err := ImportRules([]byte("{not json"))
	assert.ErrorIs(t, err, ErrInvalidRuleImport)
}

func TestImportRules_DropsInvalidRules(t *testing.T) {
	valid := rule("r1", 0.8, 1, securityCondition(), adjust(2))
	invalid := rule("", 0.8, 2, securityCondition(), adjust(2)) // missing id

	data, err := ExportRules([]*models.PrioritizationRule{valid, invalid})
	require.NoError(t, err)

	imported, err := ImportRules(data)
	require.NoError(t, err)

	require.Len(t, imported, 1, "invalid rules are filtered, not fatal")
	assert.Equal(t, "r1", imported[0].ID)
}

func TestImportRules_EmptyArray(t *testing.T) {
	imported, err := ImportRules([]byte("[]"))
	require.NoError(t, err)
	assert.Empty(t, imported)
}
