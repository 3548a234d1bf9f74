// Package mixin provides common embeddable field groups for models
// resolved by package catalog. Embed one anonymously and its tagged
// fields are promoted into the embedder's TableSpec exactly as Go
// promotes the struct fields themselves — the reflection-based
// counterpart of composable schema mixins.
//
// These are OPTIONAL starting points; a model is free to declare its own
// created_at/deleted_at/tenant_id fields instead.
//
// Usage:
//
//	type Order struct {
//	    ID int64 `relata:"pk;autoincrement"`
//	    mixin.Timestamps
//	    mixin.SoftDelete
//	}
package mixin

import "time"

// Timestamps adds created_at (immutable, defaulted at insert) and
// updated_at (refreshed on every UPDATE via OnUpdateCurrentTime).
//
// Generated columns (MySQL rendering):
//
//	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
//	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
type Timestamps struct {
	CreatedAt time.Time `relata:"default=CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `relata:"default=CURRENT_TIMESTAMP;onupdatecurrenttime"`
}

// SoftDelete adds a nullable deleted_at marker. Repository callers filter
// on it explicitly (e.g. via Find's WhereConditions); relata does not
// inject an implicit WHERE deleted_at IS NULL anywhere.
//
// Generated column (MySQL rendering):
//
//	deleted_at DATETIME NULL
type SoftDelete struct {
	DeletedAt *time.Time `relata:""`
}

// TenantScope adds an immutable tenant_id column for row-level
// multi-tenancy. Callers are responsible for including it in every query
// predicate and every insert; relata enforces no tenant isolation itself.
//
// Generated column:
//
//	tenant_id VARCHAR(255) NOT NULL
type TenantScope struct {
	TenantID string `relata:"notnull;index"`
}
