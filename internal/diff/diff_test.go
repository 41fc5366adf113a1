package diff

import (
	"reflect"
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name        string
		before      map[string]string
		after       map[string]string
		wantAdded   map[string]string
		wantRemoved map[string]string
		wantChanged map[string]Change
	}{
		{
			name:        "identical sets",
			before:      map[string]string{"A": "1", "B": "2"},
			after:       map[string]string{"A": "1", "B": "2"},
			wantAdded:   map[string]string{},
			wantRemoved: map[string]string{},
			wantChanged: map[string]Change{},
		},
		{
			name:        "added key",
			before:      map[string]string{"A": "1"},
			after:       map[string]string{"A": "1", "B": "2"},
			wantAdded:   map[string]string{"B": "2"},
			wantRemoved: map[string]string{},
			wantChanged: map[string]Change{},
		},
		{
			name:        "removed key",
			before:      map[string]string{"A": "1", "B": "2"},
			after:       map[string]string{"A": "1"},
			wantAdded:   map[string]string{},
			wantRemoved: map[string]string{"B": "2"},
			wantChanged: map[string]Change{},
		},
		{
			name:        "changed value",
			before:      map[string]string{"A": "1"},
			after:       map[string]string{"A": "2"},
			wantAdded:   map[string]string{},
			wantRemoved: map[string]string{},
			wantChanged: map[string]Change{"A": {Old: "1", New: "2"}},
		},
		{
			name:        "all three at once",
			before:      map[string]string{"KEEP": "same", "DROP": "gone", "EDIT": "old"},
			after:       map[string]string{"KEEP": "same", "NEW": "fresh", "EDIT": "new"},
			wantAdded:   map[string]string{"NEW": "fresh"},
			wantRemoved: map[string]string{"DROP": "gone"},
			wantChanged: map[string]Change{"EDIT": {Old: "old", New: "new"}},
		},
		{
			name:        "empty before",
			before:      map[string]string{},
			after:       map[string]string{"A": "1"},
			wantAdded:   map[string]string{"A": "1"},
			wantRemoved: map[string]string{},
			wantChanged: map[string]Change{},
		},
		{
			name:        "empty after",
			before:      map[string]string{"A": "1"},
			after:       map[string]string{},
			wantAdded:   map[string]string{},
			wantRemoved: map[string]string{"A": "1"},
			wantChanged: map[string]Change{},
		},
		{
			name:        "nil maps",
			before:      nil,
			after:       nil,
			wantAdded:   map[string]string{},
			wantRemoved: map[string]string{},
			wantChanged: map[string]Change{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.before, tt.after)
			if !reflect.DeepEqual(got.Added, tt.wantAdded) {
				t.Errorf("Added = %v, want %v", got.Added, tt.wantAdded)
			}
			if !reflect.DeepEqual(got.Removed, tt.wantRemoved) {
				t.Errorf("Removed = %v, want %v", got.Removed, tt.wantRemoved)
			}
			if !reflect.DeepEqual(got.Changed, tt.wantChanged) {
				t.Errorf("Changed = %v, want %v", got.Changed, tt.wantChanged)
			}
		})
	}
}

func TestCompareDoesNotMutateInputs(t *testing.T) {
	before := map[string]string{"A": "1"}
	after := map[string]string{"A": "2", "B": "3"}

	Compare(before, after)

	if !reflect.DeepEqual(before, map[string]string{"A": "1"}) {
		t.Errorf("before was mutated: %v", before)
	}
	if !reflect.DeepEqual(after, map[string]string{"A": "2", "B": "3"}) {
		t.Errorf("after was mutated: %v", after)
	}
}

func TestEmptyAndCount(t *testing.T) {
	if d := Compare(map[string]string{"A": "1"}, map[string]string{"A": "1"}); !d.Empty() || d.Count() != 0 {
		t.Errorf("identical sets: Empty() = %v, Count() = %d", d.Empty(), d.Count())
	}

	d := Compare(
		map[string]string{"DROP": "x", "EDIT": "old"},
		map[string]string{"NEW": "y", "EDIT": "new"},
	)
	if d.Empty() {
		t.Error("Empty() = true for differing sets")
	}
	if d.Count() != 3 {
		t.Errorf("Count() = %d, want 3", d.Count())
	}
}

func TestSortedKeyAccessors(t *testing.T) {
	d := Compare(
		map[string]string{"B_REMOVED": "1", "A_REMOVED": "2", "Z_CHANGED": "old", "A_CHANGED": "old"},
		map[string]string{"B_ADDED": "1", "A_ADDED": "2", "Z_CHANGED": "new", "A_CHANGED": "new"},
	)

	if got, want := d.AddedKeys(), []string{"A_ADDED", "B_ADDED"}; !reflect.DeepEqual(got, want) {
		t.Errorf("AddedKeys() = %v, want %v", got, want)
	}
	if got, want := d.RemovedKeys(), []string{"A_REMOVED", "B_REMOVED"}; !reflect.DeepEqual(got, want) {
		t.Errorf("RemovedKeys() = %v, want %v", got, want)
	}
	if got, want := d.ChangedKeys(), []string{"A_CHANGED", "Z_CHANGED"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ChangedKeys() = %v, want %v", got, want)
	}
}

func TestDiffComposition(t *testing.T) {
	// Applying v1→v2 then v2→v3 must land on the same state that v1→v3 describes.
	v1 := map[string]string{"A": "1", "B": "2", "C": "3"}
	v2 := map[string]string{"A": "1", "B": "20", "D": "4"}
	v3 := map[string]string{"A": "10", "B": "20", "D": "4", "E": "5"}

	composed := apply(apply(v1, Compare(v1, v2)), Compare(v2, v3))
	direct := apply(v1, Compare(v1, v3))

	if !reflect.DeepEqual(composed, direct) {
		t.Errorf("composed = %v, direct = %v", composed, direct)
	}
	if !reflect.DeepEqual(composed, v3) {
		t.Errorf("composed = %v, want %v", composed, v3)
	}
}

// apply replays a diff onto a copy of the given set.
func apply(vars map[string]string, d Diff) map[string]string {
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	for k := range d.Removed {
		delete(out, k)
	}
	for k, v := range d.Added {
		out[k] = v
	}
	for k, c := range d.Changed {
		out[k] = c.New
	}
	return out
}
