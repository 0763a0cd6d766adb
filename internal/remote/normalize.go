package remote

import (
	"encoding/json"
	"fmt"

	"fincache/internal/log"
)

// Kind is the wire shape a payload arrived in.
type Kind int

const (
	Empty Kind = iota
	Single
	Collection
)

func (k Kind) String() string {
	switch k {
	case Single:
		return "single"
	case Collection:
		return "collection"
	default:
		return "empty"
	}
}

// Shape is the normalized payload of an envelope. Items is never nil.
// Mismatches holds one error per element that could not be decoded.
type Shape[T any] struct {
	Kind       Kind
	Items      []T
	Mismatches []error
}

// Normalize extracts the collection carried by env.
//
// Non-empty rows win. Otherwise a non-null data is used: an object becomes a
// one-element collection, an array is taken as the collection. Anything else
// is empty. Elements of rows or data that are themselves arrays are flattened
// one level. Elements that do not decode into T are skipped and reported in
// Mismatches.
func Normalize[T any](env *Envelope) Shape[T] {
	shape := Shape[T]{Kind: Empty, Items: []T{}}
	if env == nil {
		return shape
	}

	if !isAbsent(env.Rows) {
		elems, err := flatten(env.Rows)
		if err != nil {
			shape.Mismatches = append(shape.Mismatches, fmt.Errorf("%w: rows: %w", ErrShapeMismatch, err))
		} else if len(elems) > 0 {
			shape.Kind = Collection
			decodeInto(&shape, elems)
			return shape
		}
	}

	if isAbsent(env.Data) {
		return shape
	}

	if isArray(env.Data) {
		elems, err := flatten(env.Data)
		if err != nil {
			shape.Mismatches = append(shape.Mismatches, fmt.Errorf("%w: data: %w", ErrShapeMismatch, err))
			return shape
		}
		shape.Kind = Collection
		decodeInto(&shape, elems)
		return shape
	}

	shape.Kind = Single
	decodeInto(&shape, []json.RawMessage{env.Data})
	return shape
}

// flatten splits a JSON array into its elements, unwrapping nested arrays one level.
func flatten(raw json.RawMessage) ([]json.RawMessage, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(top))
	for _, elem := range top {
		if isAbsent(elem) {
			continue
		}
		if !isArray(elem) {
			out = append(out, elem)
			continue
		}
		var nested []json.RawMessage
		if err := json.Unmarshal(elem, &nested); err != nil {
			return nil, err
		}
		for _, n := range nested {
			if !isAbsent(n) {
				out = append(out, n)
			}
		}
	}
	return out, nil
}

func decodeInto[T any](shape *Shape[T], elems []json.RawMessage) {
	for i, elem := range elems {
		var item T
		if err := json.Unmarshal(elem, &item); err != nil {
			shape.Mismatches = append(shape.Mismatches, fmt.Errorf("%w: element %d: %w", ErrShapeMismatch, i, err))
			continue
		}
		shape.Items = append(shape.Items, item)
	}
}

// Items checks the envelope code and returns the normalized collection.
// Shape mismatches are logged and never returned as errors.
func Items[T any](env *Envelope, logger *log.Logger) ([]T, error) {
	if err := env.Err(); err != nil {
		return nil, err
	}
	shape := Normalize[T](env)
	logMismatches(logger, shape.Mismatches)
	return shape.Items, nil
}

// First returns the first normalized item. ok is false when the envelope
// carried nothing usable.
func First[T any](env *Envelope, logger *log.Logger) (item T, ok bool, err error) {
	items, err := Items[T](env, logger)
	if err != nil || len(items) == 0 {
		return item, false, err
	}
	return items[0], true, nil
}

// Object decodes data as a single value for endpoints that return one object
// rather than a collection. A null or undecodable data yields the zero value.
func Object[T any](env *Envelope, logger *log.Logger) (T, error) {
	var v T
	if err := env.Err(); err != nil {
		return v, err
	}
	if isAbsent(env.Data) {
		return v, nil
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		logMismatches(logger, []error{fmt.Errorf("%w: data: %w", ErrShapeMismatch, err)})
		var zero T
		return zero, nil
	}
	return v, nil
}

func logMismatches(logger *log.Logger, errs []error) {
	if len(errs) == 0 {
		return
	}
	if logger == nil {
		logger = log.Default(log.ComponentRemote)
	}
	for _, err := range errs {
		logger.Warn("Skipping malformed payload element",
			log.FieldError, err,
			"error_type", log.ErrorTypeShape)
	}
}
