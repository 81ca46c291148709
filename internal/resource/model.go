package resource

import (
	"time"

	"github.com/uptrace/bun"
)

// Resource is a person who can be assigned to projects.
type Resource struct {
	bun.BaseModel `bun:"table:resources,alias:r"`

	ID        int       `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Email     string    `bun:"email,notnull" json:"email"`
	Skills    string    `bun:"skills" json:"skills"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

type Input struct {
	Name   string `json:"name" validate:"required,max=255"`
	Email  string `json:"email" validate:"required,email,max=255"`
	Skills string `json:"skills" validate:"max=2000"`
}

// apply copies in onto r and returns the fields whose value changed, keyed by JSON name.
func (r *Resource) apply(in Input) map[string]any {
	changes := make(map[string]any)
	if r.Name != in.Name {
		changes["name"] = in.Name
		r.Name = in.Name
	}
	if r.Email != in.Email {
		changes["email"] = in.Email
		r.Email = in.Email
	}
	if r.Skills != in.Skills {
		changes["skills"] = in.Skills
		r.Skills = in.Skills
	}
	return changes
}
