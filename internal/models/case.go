package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type CaseStatus string

const (
	CaseStatusPending  CaseStatus = "pending"
	CaseStatusInReview CaseStatus = "in_review"
	CaseStatusApproved CaseStatus = "approved"
	CaseStatusRejected CaseStatus = "rejected"
)

// Category is the closed set of case and procedure categories. The zero value means
// the category is unknown.
type Category string

const (
	CategoryFunding  Category = "funding"
	CategoryPermits  Category = "permits"
	CategoryLicenses Category = "licenses"
	CategoryOther    Category = "other"
)

// ParseCategory maps free text onto the enumeration. Anything outside it becomes
// CategoryOther, blank input stays empty.
func ParseCategory(s string) Category {
	s = strings.ToLower(strings.TrimSpace(s))
	switch Category(s) {
	case "":
		return ""
	case CategoryFunding, CategoryPermits, CategoryLicenses, CategoryOther:
		return Category(s)
	}
	return CategoryOther
}

type Case struct {
	ID                  uuid.UUID      `json:"id"`
	UserID              *uuid.UUID     `json:"user_id,omitempty"`
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	Category            Category       `json:"category,omitempty"`
	ApplicantDetails    map[string]any `json:"applicant_details,omitempty"`
	Status              CaseStatus     `json:"status"`
	AssignedProcedureID *uuid.UUID     `json:"assigned_procedure_id,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
}
