package classify_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"courtline/internal/apperr"
	"courtline/internal/classify"
	"courtline/internal/config"
	"courtline/internal/domain"
	"courtline/internal/logging"
)

func newService(t *testing.T, dir string, length int) *classify.Service {
	t.Helper()
	store := classify.FileStore{
		Path: filepath.Join(dir, "character_classifications.b64"),
		Now:  func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
	svc, err := classify.New(store, config.Default().Classifier, length, logging.Discard())
	require.NoError(t, err)
	return svc
}

var cast = []struct{ name, hint string }{
	{"Victoria Sterling", "business rival"},
	{"Marcus Webb", "security guard"},
	{"Detective Lena Ortiz", "detective"},
	{"Nurse Hall", "witness"},
	{"Thomas Grey", "ex-husband"},
	{"Ada Finch", ""},
	{"Judge Harlan", "judge"},
	{"Penny Moss", "tenant"},
}

func TestClassificationIsDeterministic(t *testing.T) {
	a := newService(t, t.TempDir(), 3)
	b := newService(t, t.TempDir(), 3)
	for _, c := range cast {
		ra, created, err := a.Classify(c.name, c.hint)
		require.NoError(t, err)
		require.True(t, created)
		rb, _, err := b.Classify(c.name, c.hint)
		require.NoError(t, err)
		require.Equal(t, ra, rb, "character %s", c.name)
	}
	require.Equal(t, a.All(), b.All())
}

func TestClassificationIsFinalAndPersisted(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t, dir, 2)
	first, created, err := svc.Classify("Nurse Hall", "witness")
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := svc.Classify("Nurse Hall", "security guard")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first, again)

	reloaded := newService(t, dir, 2)
	got, ok := reloaded.Lookup("Nurse Hall")
	require.True(t, ok)
	require.Equal(t, first, got)
	_, ok = reloaded.Lookup("Nobody")
	require.False(t, ok)

	raw, err := os.ReadFile(filepath.Join(dir, "character_classifications.b64"))
	require.NoError(t, err)
	require.NotContains(t, string(raw), "Nurse Hall")
	reg, err := classify.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, first, reg["Nurse Hall"])
}

func TestAtMostOneKiller(t *testing.T) {
	svc := newService(t, t.TempDir(), 1)
	for i := 0; i < 200; i++ {
		_, _, err := svc.Classify(fmt.Sprintf("Guard %03d", i), "security")
		require.NoError(t, err)
	}
	require.Len(t, svc.Killers(), 1)
	require.True(t, svc.Stats().Solvable)
}

func TestConspiratorCapForTwoDayCase(t *testing.T) {
	svc := newService(t, t.TempDir(), 2)
	for i := 0; i < 200; i++ {
		_, _, err := svc.Classify(fmt.Sprintf("Rival %03d", i), "business rival")
		require.NoError(t, err)
	}
	require.Len(t, svc.Conspirators(), 2)
	st := svc.Stats()
	require.Equal(t, 200, st.TotalCharacters)
	require.Equal(t, 200, st.Killers+st.Conspirators+st.RedHerrings)
	require.Zero(t, st.ConspiratorSlotsLeft)
	require.InDelta(t, 1.0/3.0, st.ExpectedKillerRate, 1e-9)
}

func TestWeightedProbability(t *testing.T) {
	svc := newService(t, t.TempDir(), 2)
	require.InDelta(t, 0.10, svc.WeightedProbability("detective"), 1e-9)
	require.InDelta(t, 1.0/3.0, svc.WeightedProbability("witness"), 1e-9)
	require.InDelta(t, 0.6, svc.WeightedProbability("security"), 1e-9)
	require.InDelta(t, 1.0/3.0, svc.WeightedProbability(""), 1e-9)

	one := newService(t, t.TempDir(), 1)
	require.InDelta(t, 0.9, one.WeightedProbability("rival"), 1e-9)
}

func TestRoleWeights(t *testing.T) {
	w := classify.NewWeights(config.Default().Classifier.RoleWeights)
	cases := map[string]float64{
		"Detective":              0.3,
		"daughter":               1.8,
		"estranged daughter":     1.8,
		"head of security":       1.8,
		"court clerk":            1.0,
		"chief medical examiner": 0.3,
		"astronaut":              1.0,
		"":                       1.0,
	}
	for hint, want := range cases {
		require.InDelta(t, want, w.Of(hint), 1e-9, "hint %q", hint)
	}
}

func TestOverrideKeepsInvariants(t *testing.T) {
	svc := newService(t, t.TempDir(), 1)
	require.NoError(t, svc.Override("Victoria Sterling", domain.Killer))
	err := svc.Override("Marcus Webb", domain.Killer)
	require.True(t, apperr.HasCode(err, apperr.CodeCapReached))

	require.NoError(t, svc.Override("Marcus Webb", domain.Conspirator))
	err = svc.Override("Thomas Grey", domain.Conspirator)
	require.True(t, apperr.HasCode(err, apperr.CodeCapReached))

	require.NoError(t, svc.Override("Victoria Sterling", domain.RedHerring))
	require.NoError(t, svc.Override("Thomas Grey", domain.Killer))
	require.Equal(t, []string{"Thomas Grey"}, svc.Killers())

	err = svc.Override("Ada Finch", domain.Classification("true_killer"))
	require.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))

	role, created, err := svc.Classify("Thomas Grey", "detective")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, domain.Killer, role)
}

func TestCorruptRegistryStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "character_classifications.b64")
	require.NoError(t, os.WriteFile(path, []byte("%%% not base64 %%%"), 0o600))

	svc := newService(t, dir, 2)
	require.Empty(t, svc.All())
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "corrupt registry should be moved aside")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var moved bool
	for _, e := range entries {
		if strings.Contains(e.Name(), ".corrupt-") {
			moved = true
		}
	}
	require.True(t, moved)

	_, _, err = svc.Classify("Nurse Hall", "witness")
	require.NoError(t, err)
	require.Len(t, svc.All(), 1)
}

func TestDecodeRejectsUnknownRoles(t *testing.T) {
	data, err := classify.Encode(classify.Registry{"A": domain.Killer})
	require.NoError(t, err)
	_, err = classify.Decode(data)
	require.NoError(t, err)

	bad, err := classify.Encode(classify.Registry{"A": domain.Classification("true_killer")})
	require.NoError(t, err)
	_, err = classify.Decode(bad)
	require.Error(t, err)
}

func TestResetAndReplace(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t, dir, 3)
	for _, c := range cast {
		_, _, err := svc.Classify(c.name, c.hint)
		require.NoError(t, err)
	}
	snapshot := svc.All()
	require.NoError(t, svc.Reset())
	require.Empty(t, svc.All())
	require.Empty(t, newService(t, dir, 3).All())

	require.NoError(t, svc.Replace(snapshot))
	require.Equal(t, snapshot, newService(t, dir, 3).All())

	err := svc.Replace(classify.Registry{"A": domain.Killer, "B": domain.Killer})
	require.True(t, apperr.HasCode(err, apperr.CodeCapReached))
	require.Equal(t, snapshot, svc.All())
}

func TestUnknownCaseLength(t *testing.T) {
	_, err := classify.New(classify.FileStore{Path: filepath.Join(t.TempDir(), "r.b64")}, config.Default().Classifier, 7, nil)
	require.True(t, apperr.HasCode(err, apperr.CodeInvalidCaseLength))
}

func TestNamesIgnoreCase(t *testing.T) {
	svc := newService(t, t.TempDir(), 2)
	first, created, err := svc.Classify("Alice Cooper", "witness")
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := svc.Classify("  alice COOPER ", "judge")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first, again)
	require.Equal(t, classify.Registry{"Alice Cooper": first}, svc.All())

	role, ok := svc.Lookup("ALICE cooper")
	require.True(t, ok)
	require.Equal(t, first, role)

	require.NoError(t, svc.Override("alice cooper", domain.RedHerring))
	require.Equal(t, classify.Registry{"Alice Cooper": domain.RedHerring}, svc.All())

	err = svc.Replace(classify.Registry{"Bo Chen": domain.RedHerring, "bo chen": domain.Conspirator})
	require.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument), "%v", err)
	require.NoError(t, svc.Check(classify.Registry{"Bo Chen": domain.RedHerring}))
}
