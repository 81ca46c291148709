package project

import (
	"time"

	"resource-manager/internal/activity"
	"resource-manager/internal/assignment"
	"resource-manager/internal/schedule"

	"github.com/uptrace/bun"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
	StatusOnPause   Status = "on_pause"
)

// Project is a unit of work; IsTask marks the lighter task subtype.
type Project struct {
	bun.BaseModel `bun:"table:projects,alias:p"`

	ID                int        `bun:"id,pk,autoincrement" json:"id"`
	Name              string     `bun:"name,notnull" json:"name"`
	Description       string     `bun:"description" json:"description"`
	StartDate         time.Time  `bun:"start_date,type:date,notnull" json:"startDate"`
	TimeEstimateHours int        `bun:"time_estimate_hours,notnull" json:"timeEstimateHours"`
	Deadline          *time.Time `bun:"deadline,type:date" json:"deadline"`
	IsTask            bool       `bun:"is_task,notnull" json:"isTask"`
	Status            Status     `bun:"status,notnull,default:'active'" json:"status"`
	CreatedAt         time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt         time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`

	Assignments []*assignment.Assignment `bun:"rel:has-many,join:id=project_id" json:"assignments,omitempty"`
}

// Input is the create/update form. Field names follow the form posted by the admin UI.
type Input struct {
	Name              string `json:"name" validate:"required,max=255"`
	Description       string `json:"description" validate:"max=10000"`
	StartDate         string `json:"start_date" validate:"required,datetime=2006-01-02"`
	TimeEstimateHours int    `json:"time_estimate_hours" validate:"required,gt=0"`
	Deadline          string `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
	IsTask            *bool  `json:"is_task"`
	Status            Status `json:"status" validate:"omitempty,oneof=active completed archived on_pause"`
	ResourceIDs       []int  `json:"resource_ids" validate:"required,min=1,dive,gt=0"`
}

type ListFilter struct {
	// Type is "project", "task" or empty for both.
	Type string
	// Status defaults to active; "all" disables the filter.
	Status string
}

// Result is what a coordinator mutation committed. Range is set when assignments were created or moved.
type Result struct {
	Project *Project         `json:"project"`
	Range   *schedule.Range  `json:"schedule,omitempty"`
	Events  []activity.Event `json:"events"`
}
