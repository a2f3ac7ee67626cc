package models

import (
	"encoding/json"
	"time"
)

// StrictnessMode governs how hard a project gates merges
type StrictnessMode string

const (
	StrictnessVisibility StrictnessMode = "visibility"
	StrictnessSoft       StrictnessMode = "soft"
	StrictnessFull       StrictnessMode = "full"
)

// Valid reports whether the mode is one of the three known modes
func (m StrictnessMode) Valid() bool {
	switch m {
	case StrictnessVisibility, StrictnessSoft, StrictnessFull:
		return true
	}
	return false
}

// ComponentStatus is derived from active changes touching the component,
// or an explicit lock
type ComponentStatus string

const (
	ComponentStable  ComponentStatus = "stable"
	ComponentFlagged ComponentStatus = "flagged"
	ComponentPending ComponentStatus = "pending"
	ComponentLocked  ComponentStatus = "locked"
)

// ChangeStatus is the lifecycle of a change request
type ChangeStatus string

const (
	ChangeDraft           ChangeStatus = "draft"
	ChangePendingAnalysis ChangeStatus = "pending_analysis"
	ChangeInReview        ChangeStatus = "in_review"
	ChangeApproved        ChangeStatus = "approved"
	ChangeRejected        ChangeStatus = "rejected"
)

// Terminal reports whether the change can no longer be mutated
func (s ChangeStatus) Terminal() bool {
	return s == ChangeApproved || s == ChangeRejected
}

// CIStatus is read from the external CI feed, never computed here
type CIStatus string

const (
	CIRunning CIStatus = "running"
	CIPassed  CIStatus = "passed"
	CIFailed  CIStatus = "failed"
)

// DetectionMethod is how the detector found an impact
type DetectionMethod string

const (
	DetectionParser DetectionMethod = "parser"
	DetectionLLM    DetectionMethod = "llm"
)

// Confidence is the detector's confidence bucket
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// AckStatus is the acknowledgement state of a single impact row
type AckStatus string

const (
	AckWaiting       AckStatus = "waiting"
	AckAdjusting     AckStatus = "adjusting"
	AckConfirmed     AckStatus = "confirmed"
	AckAutoConfirmed AckStatus = "auto_confirmed"
	AckDismissed     AckStatus = "dismissed"
)

// Terminal reports whether the acknowledgement can no longer move
func (s AckStatus) Terminal() bool {
	switch s {
	case AckConfirmed, AckAutoConfirmed, AckDismissed:
		return true
	}
	return false
}

// Counts toward the merge gate: confirmed either by a human or by the
// auto-confirm policy. Dismissed rows drop out of the gate entirely.
func (s AckStatus) CountsAsConfirmed() bool {
	return s == AckConfirmed || s == AckAutoConfirmed
}

// User is a project member
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	AvatarURL    string    `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Project owns components and carries the live strictness mode
type Project struct {
	ID             string         `json:"id" db:"id"`
	OwnerID        string         `json:"owner_id" db:"owner_id"`
	Name           string         `json:"name" db:"name"`
	Description    string         `json:"description" db:"description"`
	StrictnessMode StrictnessMode `json:"strictness_mode" db:"strictness_mode"`
	// AutoConfirmWindow is the soft-mode acknowledgement window. Zero
	// means use the server default.
	AutoConfirmWindow time.Duration `json:"auto_confirm_window" db:"auto_confirm_window"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// Component is a unit of ownership inside a project
type Component struct {
	ID        string          `json:"id" db:"id"`
	ProjectID string          `json:"project_id" db:"project_id"`
	Name      string          `json:"name" db:"name"`
	Status    ComponentStatus `json:"status" db:"status"`
	FileCount int             `json:"file_count" db:"file_count"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`

	Contributors []ComponentContributor `json:"contributors,omitempty"`
}

// ComponentContributor links a user to a component with a role
type ComponentContributor struct {
	ComponentID string    `json:"component_id" db:"component_id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Role        string    `json:"role" db:"role"` // owner, contributor, read_only
	GrantedAt   time.Time `json:"granted_at" db:"granted_at"`
}

// Change is a change request under review
type Change struct {
	ID                string       `json:"id" db:"id"`
	ProjectID         string       `json:"project_id" db:"project_id"`
	SourceComponentID string       `json:"source_component_id" db:"source_component_id"`
	AuthorID          string       `json:"author_id" db:"author_id"`
	Title             string       `json:"title" db:"title"`
	Description       string       `json:"description" db:"description"`
	Status            ChangeStatus `json:"status" db:"status"`
	CIStatus          CIStatus     `json:"ci_status" db:"ci_status"`
	// StrictnessMode is snapshotted from the project at submission time.
	// Later project-level edits do not affect changes already in review.
	StrictnessMode StrictnessMode `json:"strictness_mode" db:"strictness_mode"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Impact is one (change, component, contributor) tuple produced by the
// detector and acknowledged by the contributor
type Impact struct {
	ID            string          `json:"id" db:"id"`
	ChangeID      string          `json:"change_id" db:"change_id"`
	ComponentID   string          `json:"component_id" db:"component_id"`
	ContributorID string          `json:"contributor_id" db:"contributor_id"`
	Method        DetectionMethod `json:"detection_method" db:"detection_method"`
	Confidence    Confidence      `json:"confidence" db:"confidence"`
	AckStatus     AckStatus       `json:"ack_status" db:"ack_status"`
	Note          string          `json:"note,omitempty" db:"note"`
	AffectedLines json.RawMessage `json:"affected_lines,omitempty" db:"affected_lines"`
	// AutoConfirmAt is an absolute deadline so it survives reload and
	// reconnection. Nil under visibility and full modes.
	AutoConfirmAt *time.Time `json:"auto_confirm_at,omitempty" db:"auto_confirm_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Key returns the upsert key for this impact
func (i *Impact) Key() ImpactKey {
	return ImpactKey{ChangeID: i.ChangeID, ComponentID: i.ComponentID, ContributorID: i.ContributorID}
}

// ImpactKey uniquely identifies an impact row within a change
type ImpactKey struct {
	ChangeID      string `json:"change_id"`
	ComponentID   string `json:"component_id"`
	ContributorID string `json:"contributor_id"`
}

// ImpactInput is one detector result, delivered as an opaque batch once
// analysis completes
type ImpactInput struct {
	ComponentID   string          `json:"component_id"`
	ContributorID string          `json:"contributor_id"`
	Method        DetectionMethod `json:"detection_method"`
	Confidence    Confidence      `json:"confidence"`
	AffectedLines json.RawMessage `json:"affected_lines,omitempty"`
}

// Role is the view/authority a user has for a given change
type Role string

const (
	RoleAuthor      Role = "author"
	RoleContributor Role = "contributor"
	RoleOwner       Role = "owner"
)

// Notification is a persisted per-user notification fed by domain events
type Notification struct {
	ID        string            `json:"id" db:"id"`
	UserID    string            `json:"user_id" db:"user_id"`
	Type      string            `json:"type" db:"type"` // change, approved, alert
	Title     string            `json:"title" db:"title"`
	Body      string            `json:"body,omitempty" db:"body"`
	Meta      map[string]string `json:"meta,omitempty"`
	IsRead    bool              `json:"is_read" db:"is_read"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}
