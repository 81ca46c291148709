// Package availability answers whether resources are free to take a new active assignment
// and serializes writers that touch the same resources.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"resource-manager/internal/assignment"
	"resource-manager/internal/metrics"
	"resource-manager/internal/resource"

	"github.com/uptrace/bun"
)

// ErrResourceUnavailable is matched by every *ConflictError.
var ErrResourceUnavailable = errors.New("resource unavailable")

// Conflict is one resource that already holds an active assignment elsewhere.
type Conflict struct {
	ResourceID   int    `json:"resourceId"`
	ResourceName string `json:"resourceName"`
	ProjectID    int    `json:"projectId"`
}

// ConflictError names the first conflicting resource; Conflicts lists all of them.
type ConflictError struct {
	Conflict
	Conflicts []Conflict `json:"conflicts"`
}

func (e *ConflictError) Error() string {
	name := e.ResourceName
	if name == "" {
		name = fmt.Sprintf("resource %d", e.ResourceID)
	}
	return fmt.Sprintf("%s is already assigned to another active project", name)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrResourceUnavailable
}

// NewConflictError builds an error whose first conflict is conflicts[0].
func NewConflictError(conflicts []Conflict) *ConflictError {
	if len(conflicts) == 0 {
		return nil
	}
	return &ConflictError{Conflict: conflicts[0], Conflicts: conflicts}
}

// ResourceStatus is a resource annotated relative to one project.
type ResourceStatus struct {
	resource.Resource
	// AssignedElsewhere is true when the resource holds an active assignment on another project.
	AssignedElsewhere bool `json:"assigned_elsewhere"`
}

type Registry struct {
	assignments assignment.Repository
	resources   resource.Repository
	metrics     *metrics.Metrics
}

func NewRegistry(assignments assignment.Repository, resources resource.Repository, m *metrics.Metrics) *Registry {
	return &Registry{
		assignments: assignments,
		resources:   resources,
		metrics:     m,
	}
}

// IsAvailable reports whether resourceID has no active assignment, ignoring excludeProjectID when set.
// Pass the caller's transaction as db to read its uncommitted state.
func (r *Registry) IsAvailable(ctx context.Context, db bun.IDB, resourceID int, excludeProjectID *int) (bool, error) {
	active, err := r.assignments.WithTx(db).ListActiveByResources(ctx, []int{resourceID}, excludeProjectID)
	if err != nil {
		return false, err
	}
	return len(active) == 0, nil
}

// ValidateAdditions checks every resource in toAdd. It is all-or-nothing: one busy resource rejects the whole set.
// The first conflict follows the order of toAdd. projectID, when set, is the project the resources are being added to.
func (r *Registry) ValidateAdditions(ctx context.Context, db bun.IDB, toAdd []int, projectID *int) error {
	ids := Dedupe(toAdd)
	if len(ids) == 0 {
		return nil
	}

	active, err := r.assignments.WithTx(db).ListActiveByResources(ctx, ids, projectID)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return nil
	}

	byResource := make(map[int]Conflict, len(active))
	for _, a := range active {
		c := Conflict{ResourceID: a.ResourceID, ProjectID: a.ProjectID}
		if a.Resource != nil {
			c.ResourceName = a.Resource.Name
		}
		byResource[a.ResourceID] = c
	}

	conflicts := make([]Conflict, 0, len(byResource))
	for _, id := range ids {
		if c, ok := byResource[id]; ok {
			conflicts = append(conflicts, c)
		}
	}
	r.metrics.RecordAvailabilityConflict(ctx)
	return NewConflictError(conflicts)
}

// LockResources takes row locks on the resources in ascending id order and returns them.
// Writers that share a resource serialize until the holder's transaction ends.
// A resource deleted since it was looked up fails with resource.ErrResourceNotFound.
func (r *Registry) LockResources(ctx context.Context, tx bun.IDB, ids []int) ([]resource.Resource, error) {
	wanted := Normalize(ids)
	locked, err := r.resources.WithTx(tx).LockByIDs(ctx, wanted)
	if err != nil {
		return nil, err
	}
	if len(locked) != len(wanted) {
		found := make(map[int]bool, len(locked))
		for _, res := range locked {
			found[res.ID] = true
		}
		for _, id := range wanted {
			if !found[id] {
				return nil, fmt.Errorf("%w: %d", resource.ErrResourceNotFound, id)
			}
		}
	}
	return locked, nil
}

// Available lists resources without any active assignment, ordered by name.
func (r *Registry) Available(ctx context.Context) ([]resource.Resource, error) {
	statuses, err := r.Resources(ctx, nil)
	if err != nil {
		return nil, err
	}

	out := make([]resource.Resource, 0, len(statuses))
	for _, s := range statuses {
		if !s.AssignedElsewhere {
			out = append(out, s.Resource)
		}
	}
	return out, nil
}

// Resources lists every resource, flagging those actively assigned to a project other than excludeProjectID.
func (r *Registry) Resources(ctx context.Context, excludeProjectID *int) ([]ResourceStatus, error) {
	all, err := r.resources.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	active, err := r.assignments.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	busy := make(map[int]bool, len(active))
	for _, a := range active {
		if excludeProjectID != nil && a.ProjectID == *excludeProjectID {
			continue
		}
		busy[a.ResourceID] = true
	}

	out := make([]ResourceStatus, 0, len(all))
	for _, res := range all {
		out = append(out, ResourceStatus{Resource: res, AssignedElsewhere: busy[res.ID]})
	}
	return out, nil
}

// Change is the roster difference between the current and desired resource sets.
type Change struct {
	ToAdd    []int `json:"toAdd"`
	ToRemove []int `json:"toRemove"`
}

func (c Change) Empty() bool {
	return len(c.ToAdd) == 0 && len(c.ToRemove) == 0
}

// Diff is order independent and collapses duplicates. Both slices of the result are sorted.
func Diff(current, desired []int) Change {
	cur := make(map[int]bool, len(current))
	for _, id := range current {
		cur[id] = true
	}
	want := make(map[int]bool, len(desired))
	for _, id := range desired {
		want[id] = true
	}

	change := Change{ToAdd: []int{}, ToRemove: []int{}}
	for id := range want {
		if !cur[id] {
			change.ToAdd = append(change.ToAdd, id)
		}
	}
	for id := range cur {
		if !want[id] {
			change.ToRemove = append(change.ToRemove, id)
		}
	}
	sort.Ints(change.ToAdd)
	sort.Ints(change.ToRemove)
	return change
}

// Dedupe drops repeated ids, keeping first occurrences in order.
func Dedupe(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Normalize returns the distinct ids in ascending order.
func Normalize(ids []int) []int {
	out := Dedupe(ids)
	sort.Ints(out)
	return out
}
