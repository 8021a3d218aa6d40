package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"courtline/internal/domain"
	"courtline/internal/projection"
	"courtline/internal/repo"
)

// ReplayReport is the result of re-projecting one case log.
type ReplayReport struct {
	CaseID      string `json:"case_id"`
	Events      int    `json:"events"`
	Mirrored    int    `json:"mirrored_events"`
	Match       bool   `json:"match"`
	MirrorMatch bool   `json:"mirror_match"`
	Digest      string `json:"digest"`
	Error       string `json:"error,omitempty"`
}

// OK reports whether both checks passed.
func (r ReplayReport) OK() bool {
	return r.Error == "" && r.Match && r.MirrorMatch
}

// VerifyReplay folds the case log from scratch and incrementally, from its
// midpoint, and compares the serialized states byte for byte. It also checks
// that the catalog mirrors every event.
func (e Engine) VerifyReplay(ctx context.Context, caseID string) (ReplayReport, error) {
	rep := ReplayReport{CaseID: caseID}
	err := e.read(ctx, caseID, func(rt *caseRuntime, _ domain.CaseState) error {
		evts := rt.log.Events()
		rep.Events = len(evts)
		scratch, err := projection.Project(evts)
		if err != nil {
			rep.Error = err.Error()
			return nil
		}
		var p projection.Projector
		if _, err := p.State(evts[:len(evts)/2]); err != nil {
			rep.Error = err.Error()
			return nil
		}
		incremental, err := p.State(evts)
		if err != nil {
			rep.Error = err.Error()
			return nil
		}
		a, err := projection.Canonical(scratch)
		if err != nil {
			return err
		}
		b, err := projection.Canonical(incremental)
		if err != nil {
			return err
		}
		rep.Match = bytes.Equal(a, b)
		sum := sha256.Sum256(a)
		rep.Digest = hex.EncodeToString(sum[:8])
		n, err := e.Repo.CountEvents(ctx, caseID)
		if err != nil {
			return fmt.Errorf("count mirrored events: %w", err)
		}
		rep.Mirrored = n
		rep.MirrorMatch = n == len(evts)
		return nil
	})
	return rep, err
}

// VerifyAll runs VerifyReplay over every case, a few at a time. Reports are
// returned in catalog order.
func (e Engine) VerifyAll(ctx context.Context, parallel int) ([]ReplayReport, error) {
	cases, err := e.Repo.ListCases(ctx, repo.CaseFilters{})
	if err != nil {
		return nil, err
	}
	if parallel < 1 {
		parallel = 4
	}
	reports := make([]ReplayReport, len(cases))
	var mu sync.Mutex
	failed := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, c := range cases {
		g.Go(func() error {
			rep, err := e.VerifyReplay(gctx, c.ID)
			if err != nil {
				return fmt.Errorf("verify %s: %w", c.ID, err)
			}
			reports[i] = rep
			if !rep.OK() {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	e.logger().InfoContext(ctx, "replay verified", slog.Int("cases", len(cases)), slog.Int("failed", failed))
	return reports, nil
}
