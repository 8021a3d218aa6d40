package domain

// Clone returns a deep copy of the state; the projector hands out clones so
// callers can never mutate the cached projection.
func (s CaseState) Clone() CaseState {
	out := s
	out.Gates = append([]Gate{}, s.Gates...)
	out.Evidence = make(map[string]Evidence, len(s.Evidence))
	for k, v := range s.Evidence {
		out.Evidence[k] = v
	}
	out.Characters = make(map[string]Character, len(s.Characters))
	for k, v := range s.Characters {
		out.Characters[k] = v
	}
	out.Trial = s.Trial.Clone()
	if s.Dice != nil {
		out.Dice = make([]DiceRoll, len(s.Dice))
		for i, d := range s.Dice {
			d.Modifiers = cloneStrings(d.Modifiers)
			out.Dice[i] = d
		}
	}
	out.Escalation.CheckedGates = cloneStrings(s.Escalation.CheckedGates)
	return out
}

func (t TrialState) Clone() TrialState {
	out := t
	out.WitnessesExamined = append([]string{}, t.WitnessesExamined...)
	out.Testimonies = make(map[string][]Statement, len(t.Testimonies))
	for k, v := range t.Testimonies {
		out.Testimonies[k] = cloneStatements(v)
	}
	out.History = make([]SessionRecord, len(t.History))
	for i, r := range t.History {
		r.Contradicted = cloneStrings(r.Contradicted)
		out.History[i] = r
	}
	if t.Session != nil {
		s := t.Session.Clone()
		out.Session = &s
	}
	return out
}

func (s Session) Clone() Session {
	out := s
	out.Statements = cloneStatements(s.Statements)
	out.Presentations = make([]Presentation, len(s.Presentations))
	for i, p := range s.Presentations {
		p.Evidence = cloneStrings(p.Evidence)
		out.Presentations[i] = p
	}
	out.CriticalStatements = cloneStrings(s.CriticalStatements)
	return out
}

func cloneStatements(in []Statement) []Statement {
	if in == nil {
		return nil
	}
	out := make([]Statement, len(in))
	for i, st := range in {
		st.ContradictingEvidence = cloneStrings(st.ContradictingEvidence)
		if st.Combinations != nil {
			combos := make([][]string, len(st.Combinations))
			for j, c := range st.Combinations {
				combos[j] = cloneStrings(c)
			}
			st.Combinations = combos
		}
		out[i] = st
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}
