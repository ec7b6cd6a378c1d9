package roles

import (
	"time"

	"github.com/hamidscode/role-manager/internal/permissions"
)

// Role is a named bundle of permission references. PermissionIDs is the
// stored reference list; Permissions carries the expanded records.
// The two may diverge: a reference whose target was deleted stays in
// PermissionIDs but never appears in Permissions.
type Role struct {
	ID            string
	Name          string
	PermissionIDs []string
	Permissions   []permissions.Permission
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UpdatePatch describes a partial role update. A nil PermissionIDs
// leaves the reference list untouched; an empty non-nil slice clears it.
type UpdatePatch struct {
	Name          *string
	PermissionIDs []string
}
