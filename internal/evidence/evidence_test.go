package evidence_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"courtline/internal/apperr"
	"courtline/internal/domain"
	"courtline/internal/evidence"
)

func TestSignificance(t *testing.T) {
	require.Equal(t, 8, evidence.Significance("Bloody Knife", "Found in the sink"))
	require.Equal(t, 9, evidence.Significance("Knife", "Photo of the murder weapon"))
	require.Equal(t, 6, evidence.Significance("Letter", "Unsigned"))
	require.Equal(t, 5, evidence.Significance("Brass Key", "Opens the study"))
	require.Equal(t, 10, evidence.Significance("DNA Report", "Recording "+strings.Repeat("x", 120)))
}

func TestPrepare(t *testing.T) {
	s := domain.NewCaseState()
	s.CurrentLocation = "hospital"
	p, err := evidence.Prepare(s, "  Autopsy Report ", "Cause of death: poisoning", "")
	require.NoError(t, err)
	require.Equal(t, "autopsy_report", p.ID)
	require.Equal(t, "Autopsy Report", p.Name)
	require.Equal(t, "hospital", p.Location)

	s.Evidence[p.ID] = domain.Evidence{ID: p.ID, Name: p.Name}
	_, err = evidence.Prepare(s, "AUTOPSY REPORT", "again", "")
	require.True(t, apperr.HasCode(err, apperr.CodeDuplicateEvidence))

	_, err = evidence.Prepare(s, "Autopsy-Report", "same id", "")
	require.True(t, apperr.HasCode(err, apperr.CodeDuplicateEvidence))

	_, err = evidence.Prepare(s, "", "x", "")
	require.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
	_, err = evidence.Prepare(s, "Note", " ", "")
	require.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
	_, err = evidence.Prepare(s, "!!!", "symbols only", "")
	require.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
}

func TestListAndAssess(t *testing.T) {
	s := domain.NewCaseState()
	for id, sig := range map[string]int{"a": 9, "b": 8, "c": 6, "d": 3, "e": 5} {
		s.Evidence[id] = domain.Evidence{ID: id, Significance: sig}
	}
	list := evidence.List(s)
	require.Equal(t, "a", list[0].ID)
	require.Equal(t, "d", list[len(list)-1].ID)

	r := evidence.Assess(s)
	require.True(t, r.Ready)
	require.Equal(t, 2, r.High)
	require.Equal(t, 2, r.Medium)
	require.Equal(t, 1, r.Low)

	empty := evidence.Assess(domain.NewCaseState())
	require.False(t, empty.Ready)
	require.Len(t, empty.Recommendations, 2)
}
