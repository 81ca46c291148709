package assignment

import (
	"time"

	"resource-manager/internal/resource"

	"github.com/uptrace/bun"
)

// Assignment links one resource to one project for a committed date range.
// Active flips to false exactly once; an assignment is never reactivated.
type Assignment struct {
	bun.BaseModel `bun:"table:assignments,alias:a"`

	ID         int        `bun:"id,pk,autoincrement" json:"id"`
	ProjectID  int        `bun:"project_id,notnull" json:"projectId"`
	ResourceID int        `bun:"resource_id,notnull" json:"resourceId"`
	StartDate  time.Time  `bun:"start_date,type:date,notnull" json:"startDate"`
	EndDate    *time.Time `bun:"end_date,type:date" json:"endDate"`
	Active     bool       `bun:"active,notnull" json:"active"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`

	Resource *resource.Resource `bun:"rel:belongs-to,join:resource_id=id" json:"resource,omitempty"`
}

// Outcome reports what Complete did.
type Outcome struct {
	Assignment      *Assignment `json:"assignment"`
	AlreadyInactive bool        `json:"alreadyInactive"`
	Message         string      `json:"message"`
}
