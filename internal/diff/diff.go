// Package diff computes differences between variable sets. All functions are
// pure: they never touch storage and never mutate their inputs.
package diff

import "sort"

// Change records a value that differs between two sets.
type Change struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Diff describes how one variable set differs from another.
type Diff struct {
	// Added holds keys present only in the second set, with their values.
	Added map[string]string `json:"added"`

	// Removed holds keys present only in the first set, with their values.
	Removed map[string]string `json:"removed"`

	// Changed holds keys present in both sets with different values.
	Changed map[string]Change `json:"changed"`
}

// Compare returns the diff from before to after.
func Compare(before, after map[string]string) Diff {
	d := Diff{
		Added:   make(map[string]string),
		Removed: make(map[string]string),
		Changed: make(map[string]Change),
	}

	for key, newValue := range after {
		oldValue, exists := before[key]
		switch {
		case !exists:
			d.Added[key] = newValue
		case oldValue != newValue:
			d.Changed[key] = Change{Old: oldValue, New: newValue}
		}
	}

	for key, oldValue := range before {
		if _, exists := after[key]; !exists {
			d.Removed[key] = oldValue
		}
	}

	return d
}

// Empty reports whether the two sets were identical.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Count returns the total number of differing keys.
func (d Diff) Count() int {
	return len(d.Added) + len(d.Removed) + len(d.Changed)
}

// AddedKeys returns the added keys in sorted order.
func (d Diff) AddedKeys() []string {
	return sortedKeys(d.Added)
}

// RemovedKeys returns the removed keys in sorted order.
func (d Diff) RemovedKeys() []string {
	return sortedKeys(d.Removed)
}

// ChangedKeys returns the changed keys in sorted order.
func (d Diff) ChangedKeys() []string {
	keys := make([]string, 0, len(d.Changed))
	for key := range d.Changed {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
