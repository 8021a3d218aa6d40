// Package classify assigns each character a hidden role: killer, conspirator
// or red herring. Assignment is deterministic in (name, role hint, case
// length) given the registry's current counts, and final once made.
package classify

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"courtline/internal/apperr"
	"courtline/internal/config"
	"courtline/internal/domain"
)

const conspiratorStage = "conspirator_stage"

// Service classifies the characters of one case. Calls are serialized because
// the killer and conspirator counts feed into every draw.
type Service struct {
	mu         sync.Mutex
	store      Store
	cfg        config.Classifier
	weights    Weights
	caseLength int
	reg        Registry
	logger     *slog.Logger
}

// New loads the registry from store. A corrupt registry is logged and
// replaced by an empty one.
func New(store Store, cfg config.Classifier, caseLength int, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, ok := cfg.ConspiratorCaps[caseLength]; !ok {
		return nil, apperr.Validation(apperr.CodeInvalidCaseLength, "no classifier settings for case length %d", caseLength)
	}
	reg, err := store.Load()
	if err != nil {
		if apperr.KindOf(err) != apperr.KindCorrupt {
			return nil, err
		}
		logger.Warn("classification registry unreadable, starting empty", slog.Any("error", err))
	}
	if reg == nil {
		reg = Registry{}
	}
	return &Service{
		store:      store,
		cfg:        cfg,
		weights:    NewWeights(cfg.RoleWeights),
		caseLength: caseLength,
		reg:        reg,
		logger:     logger,
	}, nil
}

// Classify returns the character's role, assigning and persisting it on
// first reference. created is false when the role was already on record.
func (s *Service) Classify(name, roleHint string) (role domain.Classification, created bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, apperr.Validation(apperr.CodeInvalidArgument, "character name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name = s.keyLocked(name)
	if c, ok := s.reg[name]; ok {
		return c, false, nil
	}
	role = s.roll(name, roleHint)
	next := s.copyLocked()
	next[name] = role
	if err := s.store.Save(next); err != nil {
		return "", false, fmt.Errorf("save registry: %w", err)
	}
	s.reg = next
	s.logger.Debug("character classified", slog.String("character", name), slog.String("role_hint", roleHint))
	return role, true, nil
}

func (s *Service) roll(name, hint string) domain.Classification {
	weight := s.weights.Of(hint)
	if s.countLocked(domain.Killer) == 0 {
		if draw(seed(name, "", hint)) < s.WeightedProbability(hint) {
			return domain.Killer
		}
	}
	if s.countLocked(domain.Conspirator) >= s.cfg.ConspiratorCaps[s.caseLength] {
		return domain.RedHerring
	}
	p := math.Min(s.maxProbability(), s.cfg.ConspiratorProbability[s.caseLength]*weight)
	if draw(seed(name, conspiratorStage, hint)) < p {
		return domain.Conspirator
	}
	return domain.RedHerring
}

func (s *Service) maxProbability() float64 {
	if s.cfg.MaxProbability <= 0 {
		return 0.95
	}
	return s.cfg.MaxProbability
}

// WeightedProbability is min(max, 1/(length+1) * weight(hint)).
func (s *Service) WeightedProbability(hint string) float64 {
	return math.Min(s.maxProbability(), 1.0/float64(s.caseLength+1)*s.weights.Of(hint))
}

// Lookup returns a recorded role without assigning one.
func (s *Service) Lookup(name string) (domain.Classification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.reg[s.keyLocked(name)]
	return c, ok
}

// keyLocked maps name onto the spelling already on record, ignoring case.
func (s *Service) keyLocked(name string) string {
	name = strings.TrimSpace(name)
	if _, ok := s.reg[name]; ok {
		return name
	}
	for k := range s.reg {
		if strings.EqualFold(k, name) {
			return k
		}
	}
	return name
}

// Killers lists characters classified as the killer.
func (s *Service) Killers() []string { return s.filter(domain.Killer) }

// Conspirators lists characters classified as conspirators.
func (s *Service) Conspirators() []string { return s.filter(domain.Conspirator) }

// RedHerrings lists characters classified as red herrings.
func (s *Service) RedHerrings() []string { return s.filter(domain.RedHerring) }

func (s *Service) filter(c domain.Classification) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []string{}
	for name, role := range s.reg {
		if role == c {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// All returns a copy of the registry.
func (s *Service) All() Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *Service) copyLocked() Registry {
	out := make(Registry, len(s.reg))
	for k, v := range s.reg {
		out[k] = v
	}
	return out
}

func (s *Service) countLocked(c domain.Classification) int {
	n := 0
	for _, role := range s.reg {
		if role == c {
			n++
		}
	}
	return n
}

// Stats compares actual role rates with the expected killer rate.
type Stats struct {
	CaseLength           int     `json:"case_length"`
	TotalCharacters      int     `json:"total_characters"`
	Killers              int     `json:"killers"`
	Conspirators         int     `json:"conspirators"`
	RedHerrings          int     `json:"red_herrings"`
	ConspiratorCap       int     `json:"conspirator_cap"`
	ActualKillerRate     float64 `json:"actual_killer_rate"`
	ActualRedHerringRate float64 `json:"actual_red_herring_rate"`
	ExpectedKillerRate   float64 `json:"expected_killer_rate"`
	ExpectedRedHerring   float64 `json:"expected_red_herring_rate"`
	Solvable             bool    `json:"solvable"`
	ConspiratorSlotsLeft int     `json:"conspirator_slots_left"`
}

// Stats summarizes the registry.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		CaseLength:      s.caseLength,
		TotalCharacters: len(s.reg),
		Killers:         s.countLocked(domain.Killer),
		Conspirators:    s.countLocked(domain.Conspirator),
		RedHerrings:     s.countLocked(domain.RedHerring),
		ConspiratorCap:  s.cfg.ConspiratorCaps[s.caseLength],
	}
	st.ExpectedKillerRate = 1.0 / float64(s.caseLength+1)
	st.ExpectedRedHerring = 1.0 - st.ExpectedKillerRate
	if st.TotalCharacters > 0 {
		st.ActualKillerRate = float64(st.Killers) / float64(st.TotalCharacters)
		st.ActualRedHerringRate = float64(st.RedHerrings) / float64(st.TotalCharacters)
	}
	st.Solvable = st.Killers > 0
	st.ConspiratorSlotsLeft = st.ConspiratorCap - st.Conspirators
	return st
}

// Override sets a character's role by hand. The killer and conspirator
// limits still hold.
func (s *Service) Override(name string, role domain.Classification) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Validation(apperr.CodeInvalidArgument, "character name is required")
	}
	if !role.Valid() {
		return apperr.Validation(apperr.CodeInvalidArgument, "unknown classification %q", role).
			WithValid([]string{string(domain.Killer), string(domain.Conspirator), string(domain.RedHerring)})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name = s.keyLocked(name)
	next := s.copyLocked()
	next[name] = role
	if err := s.check(next); err != nil {
		return err
	}
	if err := s.store.Save(next); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	s.reg = next
	s.logger.Info("classification overridden", slog.String("character", name))
	return nil
}

// Check reports whether reg could replace the registry, without touching it.
func (s *Service) Check(reg Registry) error {
	_, err := s.validate(reg)
	return err
}

func (s *Service) validate(reg Registry) (Registry, error) {
	next := make(Registry, len(reg))
	folded := make(map[string]string, len(reg))
	for k, v := range reg {
		if !v.Valid() {
			return nil, apperr.Validation(apperr.CodeInvalidArgument, "character %s has unknown classification %q", k, v)
		}
		if other, dup := folded[strings.ToLower(k)]; dup {
			return nil, apperr.Validation(apperr.CodeInvalidArgument, "characters %s and %s differ only in case", other, k)
		}
		folded[strings.ToLower(k)] = k
		next[k] = v
	}
	return next, s.check(next)
}

// Replace swaps the registry wholesale, as a restore does.
func (s *Service) Replace(reg Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.validate(reg)
	if err != nil {
		return err
	}
	if err := s.store.Save(next); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	s.reg = next
	return nil
}

func (s *Service) check(reg Registry) error {
	killers, conspirators := 0, 0
	for _, role := range reg {
		switch role {
		case domain.Killer:
			killers++
		case domain.Conspirator:
			conspirators++
		}
	}
	if killers > 1 {
		return apperr.Validation(apperr.CodeCapReached, "a case has at most one killer")
	}
	if limit := s.cfg.ConspiratorCaps[s.caseLength]; conspirators > limit {
		return apperr.Validation(apperr.CodeCapReached, "a %d-day case has at most %d conspirators", s.caseLength, limit)
	}
	return nil
}

// Reset forgets every classification.
func (s *Service) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Clear(); err != nil {
		return err
	}
	s.reg = Registry{}
	return nil
}
