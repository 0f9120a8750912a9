package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Model is the category half of an association.
type Model string

const (
	ModelUser Model = "user"
	ModelMisc Model = "misc"
)

// Association addresses persisted records by (category, key).
type Association struct {
	Model Model
	Key   string
}

func (a Association) String() string { return string(a.Model) + "/" + a.Key }

func UserAssociation(userID int64) Association {
	return Association{Model: ModelUser, Key: strconv.FormatInt(userID, 10)}
}

func MiscAssociation(key string) Association {
	return Association{Model: ModelMisc, Key: key}
}

// ErrConflict is returned when an atomic update keeps losing to concurrent writers.
var ErrConflict = errors.New("storage: concurrent update conflict")

// Mutator receives the current record (nil when absent) and returns its
// replacement. Returning nil removes the record.
type Mutator func(current []byte) ([]byte, error)

// Store is a key-value association store. Several records may live under
// the same association (Append); Read and Update operate on the first one.
// Implementations must be safe for concurrent use.
type Store interface {
	// Read returns the first record under a, or nil when there is none.
	Read(ctx context.Context, a Association) ([]byte, error)
	// ReadAll returns every record under a in insertion order.
	ReadAll(ctx context.Context, a Association) ([][]byte, error)
	// Put replaces all records under a with data.
	Put(ctx context.Context, a Association, data []byte) error
	// Append adds one more record under a.
	Append(ctx context.Context, a Association, data []byte) error
	// Remove deletes all records under a. Removing nothing is not an error.
	Remove(ctx context.Context, a Association) error
	// Update atomically replaces the first record under a with fn's result.
	Update(ctx context.Context, a Association, fn Mutator) error
}

// ReadJSON decodes the record under a into v and reports whether one existed.
func ReadJSON(ctx context.Context, s Store, a Association, v any) (bool, error) {
	data, err := s.Read(ctx, a)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("storage: decode %s: %w", a, err)
	}
	return true, nil
}

// ReadAllJSON decodes every record under a.
func ReadAllJSON[T any](ctx context.Context, s Store, a Association) ([]T, error) {
	raw, err := s.ReadAll(ctx, a)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, fmt.Errorf("storage: decode %s: %w", a, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// PutJSON encodes v and stores it as the only record under a.
func PutJSON(ctx context.Context, s Store, a Association, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", a, err)
	}
	return s.Put(ctx, a, data)
}

// AppendJSON encodes v and appends it under a.
func AppendJSON(ctx context.Context, s Store, a Association, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", a, err)
	}
	return s.Append(ctx, a, data)
}

// UpdateJSON is the typed form of Store.Update. fn gets the decoded record
// (nil when absent) and returns the new value, or nil to remove the record.
func UpdateJSON[T any](ctx context.Context, s Store, a Association, fn func(current *T) (*T, error)) error {
	return s.Update(ctx, a, func(raw []byte) ([]byte, error) {
		var cur *T
		if raw != nil {
			cur = new(T)
			if err := json.Unmarshal(raw, cur); err != nil {
				return nil, fmt.Errorf("storage: decode %s: %w", a, err)
			}
		}
		next, err := fn(cur)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		return json.Marshal(next)
	})
}
