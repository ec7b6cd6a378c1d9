package permissions

import "time"

// Permission is an atomic capability identified by a globally unique slug.
// Meta carries arbitrary descriptive data with no enforced schema.
type Permission struct {
	ID        string
	Slug      string
	Meta      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpdatePatch describes a partial permission update. Nil fields are
// left untouched.
type UpdatePatch struct {
	Slug *string
	Meta map[string]any
}
