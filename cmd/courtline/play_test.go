package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatementsYAMLList(t *testing.T) {
	data := []byte(`
- id: A
  text: I was in the gallery all night.
- id: B
  text: The alarm never went off.
  is_lie: true
  critical: true
  contradicting_evidence: [Security Log]
  combinations:
    - [Ticket Stub, Security Log]
`)
	specs, err := parseStatements(data)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "A", specs[0].ID)
	assert.False(t, specs[0].IsLie)
	assert.True(t, specs[1].IsLie)
	assert.True(t, specs[1].Critical)
	assert.Equal(t, []string{"Security Log"}, specs[1].ContradictingEvidence)
	assert.Equal(t, [][]string{{"Ticket Stub", "Security Log"}}, specs[1].Combinations)
}

func TestParseStatementsJSONWrapper(t *testing.T) {
	specs, err := parseStatements([]byte(`{"statements": [{"id": "A", "text": "Hello", "is_lie": false, "contradicting_evidence": []}]}`))
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "Hello", specs[0].Text)
}

func TestParseStatementsRejectsScalars(t *testing.T) {
	_, err := parseStatements([]byte(`just text`))
	require.Error(t, err)
	_, err = parseStatements([]byte(`{"witness": "Vance"}`))
	require.Error(t, err)
}
