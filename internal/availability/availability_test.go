package availability_test

import (
	"errors"
	"testing"

	"resource-manager/internal/availability"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name       string
		current    []int
		desired    []int
		wantAdd    []int
		wantRemove []int
	}{
		{"unchanged", []int{1, 2}, []int{2, 1}, []int{}, []int{}},
		{"add only", []int{1}, []int{1, 3, 2}, []int{2, 3}, []int{}},
		{"remove only", []int{4, 1, 2}, []int{2}, []int{}, []int{1, 4}},
		{"swap", []int{1}, []int{2}, []int{2}, []int{1}},
		{"duplicates collapse", []int{1, 1, 2}, []int{2, 3, 3}, []int{3}, []int{1}},
		{"empty current", nil, []int{5}, []int{5}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := availability.Diff(tt.current, tt.desired)
			assert.Equal(t, tt.wantAdd, got.ToAdd)
			assert.Equal(t, tt.wantRemove, got.ToRemove)
		})
	}
}

func TestDiff_Idempotent(t *testing.T) {
	current := []int{3, 1}
	desired := []int{1, 2, 5}

	first := availability.Diff(current, desired)

	// applying the change yields the desired roster, and diffing again yields nothing
	applied := map[int]bool{}
	for _, id := range current {
		applied[id] = true
	}
	for _, id := range first.ToRemove {
		delete(applied, id)
	}
	for _, id := range first.ToAdd {
		applied[id] = true
	}
	var roster []int
	for id := range applied {
		roster = append(roster, id)
	}

	second := availability.Diff(roster, desired)
	assert.True(t, second.Empty())
	assert.Equal(t, first, availability.Diff(current, desired))
}

func TestDedupeAndNormalize(t *testing.T) {
	assert.Equal(t, []int{3, 1, 2}, availability.Dedupe([]int{3, 1, 3, 2, 1}))
	assert.Equal(t, []int{1, 2, 3}, availability.Normalize([]int{3, 1, 3, 2, 1}))
	assert.Empty(t, availability.Normalize(nil))
}

func TestConflictError(t *testing.T) {
	err := availability.NewConflictError([]availability.Conflict{
		{ResourceID: 4, ResourceName: "Grace", ProjectID: 9},
		{ResourceID: 2, ProjectID: 9},
	})

	assert.True(t, errors.Is(err, availability.ErrResourceUnavailable))
	assert.Equal(t, 4, err.ResourceID)
	assert.Equal(t, "Grace is already assigned to another active project", err.Error())
	assert.Len(t, err.Conflicts, 2)

	unnamed := availability.NewConflictError([]availability.Conflict{{ResourceID: 2}})
	assert.Equal(t, "resource 2 is already assigned to another active project", unnamed.Error())

	assert.Nil(t, availability.NewConflictError(nil))
}
