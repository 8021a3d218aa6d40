// Package escalation decides when a lesser crime turns out to be murder.
package escalation

import (
	"fmt"
	"strings"

	"courtline/internal/domain"
	"courtline/internal/events"
	"courtline/internal/gates"
)

// Crime types.
const (
	Murder   = "murder"
	Burglary = "burglary"
	Theft    = "theft"
	Assault  = "assault"
	Fraud    = "fraud"
	Unknown  = "unknown"
)

// Threshold is the d20 result at or above which a non-final gate escalates.
const Threshold = 11

var crimeWords = []struct {
	crime string
	words []string
}{
	{Murder, []string{"murder", "killed", "dead body", "corpse", "homicide"}},
	{Burglary, []string{"burglary", "burglar", "break-in", "breaking and entering"}},
	{Theft, []string{"theft", "stolen", "robbery", "robbed"}},
	{Assault, []string{"assault", "attacked", "beaten"}},
	{Fraud, []string{"fraud", "embezzlement", "scam"}},
}

// DetectCrime classifies the crime described by a case opening.
func DetectCrime(text string) string {
	t := strings.ToLower(text)
	for _, c := range crimeWords {
		for _, w := range c.words {
			if strings.Contains(t, w) {
				return c.crime
			}
		}
	}
	return Unknown
}

// Pattern is the narrative hook for an escalation.
type Pattern struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Guidance    string `json:"gm_guidance"`
}

var patterns = map[string]Pattern{
	Burglary: {
		Type:        "Victim Dies from Injuries",
		Description: "The victim has died from injuries sustained during the burglary. What seemed like a simple break-in has become a murder investigation.",
		Guidance:    "Did the victim die from the initial attack, or were they killed to prevent identification? Recast existing evidence as murder clues.",
	},
	Theft: {
		Type:        "Witness Elimination",
		Description: "Someone who witnessed the theft has been found dead. The thief killed them to prevent identification.",
		Guidance:    "Who saw the theft, and how did the killer learn of it? Build the murder timeline from existing evidence.",
	},
	Assault: {
		Type:        "Escalated Violence",
		Description: "The assault victim has succumbed to their injuries. The attacker now faces murder charges.",
		Guidance:    "Was the death intentional? Look for evidence of a cover-up after the attack.",
	},
	Fraud: {
		Type:        "Accomplice Silenced",
		Description: "A key figure in the fraud scheme has been found dead. Someone killed them to prevent their testimony.",
		Guidance:    "Who had the most to lose from the accomplice's testimony? Follow the money.",
	},
	Unknown: {
		Type:        "Hidden Murder Revealed",
		Description: "What appeared to be a minor crime was a cover-up for murder.",
		Guidance:    "How long has the murder been hidden, and what was the original crime meant to conceal?",
	},
}

// Narrative returns the escalation hook for an original crime type.
func Narrative(crime string) Pattern {
	if p, ok := patterns[crime]; ok {
		return p
	}
	return patterns[Unknown]
}

// IsMurder reports whether the case is, or has become, a murder case.
func IsMurder(s domain.CaseState) bool {
	return s.Escalation.Escalated || s.Escalation.CurrentCrime == Murder
}

// Check decides whether completing gate escalates the case. ok is false when
// no check applies: the case is already a murder, the gate is not an
// investigation gate, or it was checked before. The final investigation gate
// always escalates; others escalate when roll() >= Threshold.
func Check(s domain.CaseState, gate string, roll func() int) (p events.CrimeEscalatedPayload, ok bool) {
	if IsMurder(s) {
		return p, false
	}
	i := s.FindGate(gate)
	if i < 0 || s.Gates[i].Kind != domain.GateInvestigation {
		return p, false
	}
	for _, g := range s.Escalation.CheckedGates {
		if g == gate {
			return p, false
		}
	}
	from := s.Escalation.CurrentCrime
	if from == "" {
		from = Unknown
	}
	p = events.CrimeEscalatedPayload{Gate: gate, From: from, To: from}
	if gates.New(s.Gates, s.TrialTrigger).IsFinalInvestigation(gate) {
		p.Escalated = true
	} else {
		p.Roll = roll()
		p.Escalated = p.Roll >= Threshold
	}
	if p.Escalated {
		hook := Narrative(from)
		p.To = Murder
		p.Narrative = fmt.Sprintf("%s: %s", hook.Type, hook.Description)
	}
	return p, true
}
