// Package evidence validates new evidence and scores its significance.
package evidence

import (
	"sort"
	"strings"

	"courtline/internal/apperr"
	"courtline/internal/domain"
	"courtline/internal/events"
)

var (
	highKeywords   = []string{"murder weapon", "gun", "knife", "blood", "fingerprint", "dna", "confession", "witness", "alibi", "motive"}
	mediumKeywords = []string{"clue", "evidence", "proof", "document", "letter", "phone", "camera", "photo", "recording"}
)

const (
	baseSignificance = 5
	maxSignificance  = 10
	detailedLength   = 100
)

// Significance scores evidence from 1 to 10 by keywords and detail.
func Significance(name, description string) int {
	text := strings.ToLower(name + " " + description)
	score := baseSignificance
	if containsAny(text, highKeywords) {
		score += 3
	}
	if containsAny(text, mediumKeywords) {
		score++
	}
	if len(description) > detailedLength {
		score++
	}
	if score > maxSignificance {
		score = maxSignificance
	}
	return score
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Prepare validates new evidence against the case and returns the event
// payload recording it. Names are unique case-insensitively.
func Prepare(s domain.CaseState, name, description, location string) (events.EvidenceAddedPayload, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" {
		return events.EvidenceAddedPayload{}, apperr.Validation(apperr.CodeInvalidArgument, "evidence name is required")
	}
	if description == "" {
		return events.EvidenceAddedPayload{}, apperr.Validation(apperr.CodeInvalidArgument, "evidence description is required")
	}
	id := domain.Slug(name)
	if id == "" {
		return events.EvidenceAddedPayload{}, apperr.Validation(apperr.CodeInvalidArgument, "evidence name %q has no usable characters", name)
	}
	for _, ev := range s.Evidence {
		if strings.EqualFold(ev.Name, name) || ev.ID == id {
			return events.EvidenceAddedPayload{}, apperr.Validation(apperr.CodeDuplicateEvidence, "evidence already exists: %s", ev.Name).
				With("evidence", ev.ID)
		}
	}
	if location == "" {
		location = s.CurrentLocation
	}
	return events.EvidenceAddedPayload{
		ID:           id,
		Name:         name,
		Description:  description,
		Location:     location,
		Significance: Significance(name, description),
	}, nil
}

// List returns collected evidence, most significant first.
func List(s domain.CaseState) []domain.Evidence {
	out := make([]domain.Evidence, 0, len(s.Evidence))
	for _, ev := range s.Evidence {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Significance != out[j].Significance {
			return out[i].Significance > out[j].Significance
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Readiness summarizes whether the evidence is strong enough for court.
type Readiness struct {
	Ready           bool     `json:"ready"`
	Total           int      `json:"total"`
	High            int      `json:"high_significance"`
	Medium          int      `json:"medium_significance"`
	Low             int      `json:"low_significance"`
	Recommendations []string `json:"recommendations"`
}

// Assess grades the collected evidence: two highly significant pieces among
// at least five make a case ready.
func Assess(s domain.CaseState) Readiness {
	r := Readiness{Total: len(s.Evidence), Recommendations: []string{}}
	for _, ev := range s.Evidence {
		switch {
		case ev.Significance >= 8:
			r.High++
		case ev.Significance >= 5:
			r.Medium++
		default:
			r.Low++
		}
	}
	r.Ready = r.High >= 2 && r.Total >= 5
	if r.Total < 3 {
		r.Recommendations = append(r.Recommendations, "Collect more evidence before proceeding to trial")
	}
	if r.High < 2 {
		r.Recommendations = append(r.Recommendations, "Find more significant evidence (weapon, motive, alibi)")
	}
	if len(r.Recommendations) == 0 {
		r.Recommendations = append(r.Recommendations, "Evidence collection looks solid for trial")
	}
	return r
}
