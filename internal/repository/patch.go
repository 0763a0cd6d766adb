package repository

import "fincache/internal/core"

// Append returns a new collection with e at the end.
func Append[E any](items []E, e E) []E {
	out := make([]E, 0, len(items)+1)
	out = append(out, items...)
	return append(out, e)
}

// Replace swaps the first element with e's id. The bool is false, and the
// input returned unchanged, when no element matches.
func Replace[E core.Entity](items []E, e E) ([]E, bool) {
	for i, it := range items {
		if it.EntityID() == e.EntityID() {
			out := append([]E(nil), items...)
			out[i] = e
			return out, true
		}
	}
	return items, false
}

// Remove drops the first element with id. The bool is false when none matches.
func Remove[E core.Entity](items []E, id int64) ([]E, bool) {
	for i, it := range items {
		if it.EntityID() == id {
			out := make([]E, 0, len(items)-1)
			out = append(out, items[:i]...)
			return append(out, items[i+1:]...), true
		}
	}
	return items, false
}

// Select returns the elements keep accepts, always as a fresh slice.
func Select[E any](items []E, keep func(E) bool) []E {
	out := make([]E, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}
