// Package auth holds the per-case permission table for players and game
// masters.
package auth

import (
	"context"
	"fmt"
	"sort"

	"courtline/internal/repo"
)

// Roles.
const (
	RolePlayer = "player"
	RoleGM     = "gm"
)

// Permissions.
const (
	PermCaseRead           = "case.read"
	PermCasePlay           = "case.play"
	PermCaseAdmin          = "case.admin"
	PermClassify           = "classification.create"
	PermClassifyRead       = "classification.read"
	PermClassifyOverride   = "classification.override"
	PermSaveManage         = "save.manage"
	PermSaveRestore        = "save.restore"
	PermEventsRead         = "events.read"
	PermTestimonyWrite     = "testimony.write"
	PermMembersManage      = "members.manage"
	PermCaseVerify         = "case.verify"
	PermEvidenceAssessment = "evidence.assess"
)

// Hidden roles must stay hidden from players, so classification reads and
// testimony authoring belong to the game master.
var rolePermissions = map[string][]string{
	RolePlayer: {
		PermCaseRead, PermCasePlay, PermClassify, PermSaveManage, PermSaveRestore,
		PermEventsRead, PermEvidenceAssessment,
	},
	RoleGM: {
		PermCaseRead, PermCasePlay, PermCaseAdmin, PermClassify, PermClassifyRead,
		PermClassifyOverride, PermSaveManage, PermSaveRestore, PermEventsRead,
		PermTestimonyWrite, PermMembersManage, PermCaseVerify, PermEvidenceAssessment,
	},
}

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// Permissions returns the sorted union of permissions for roles.
func Permissions(roles []string) []string {
	set := map[string]struct{}{}
	for _, r := range roles {
		for _, p := range rolePermissions[r] {
			set[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// Service resolves actor permissions from case membership.
type Service struct {
	Repo repo.Repo
}

func (s Service) ActorRoles(ctx context.Context, caseID, actorID string) ([]string, error) {
	return s.Repo.ActorRoles(ctx, caseID, actorID)
}

func (s Service) ActorPermissions(ctx context.Context, caseID, actorID string) ([]string, error) {
	roles, err := s.ActorRoles(ctx, caseID, actorID)
	if err != nil {
		return nil, err
	}
	return Permissions(roles), nil
}

// Require returns ForbiddenError unless actorID holds perm on caseID.
func (s Service) Require(ctx context.Context, caseID, actorID, perm string) error {
	perms, err := s.ActorPermissions(ctx, caseID, actorID)
	if err != nil {
		return err
	}
	i := sort.SearchStrings(perms, perm)
	if i < len(perms) && perms[i] == perm {
		return nil
	}
	return ForbiddenError{Permission: perm}
}
