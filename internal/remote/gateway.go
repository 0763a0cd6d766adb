package remote

import (
	"context"
	"sort"
	"strings"
)

// Resource names a remote collection.
type Resource string

const (
	Transactions  Resource = "transactions"
	Budgets       Resource = "budgets"
	Categories    Resource = "categories"
	Notifications Resource = "notifications"
	Statistics    Resource = "statistics"
)

// Actions understood by Query and Invoke.
const (
	ActionList    = "list"
	ActionRead    = "read"
	ActionReadAll = "readAll"
	ActionClear   = "clear"
)

// Params are query parameters for list and statistics calls.
type Params map[string]string

// String renders params in a stable order, for logs and tests.
func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(p[k])
	}
	return b.String()
}

// Gateway is the typed port to the finance API. A returned error is always a
// transport failure wrapping ErrTransport; server-reported failures come back
// as an envelope whose Err is non-nil.
type Gateway interface {
	List(ctx context.Context, res Resource, params Params) (*Envelope, error)
	Get(ctx context.Context, res Resource, id int64) (*Envelope, error)
	Add(ctx context.Context, res Resource, body any) (*Envelope, error)
	Update(ctx context.Context, res Resource, body any) (*Envelope, error)
	Delete(ctx context.Context, res Resource, ids ...int64) (*Envelope, error)

	// Query reads a named sub-resource, e.g. statistics/overview.
	Query(ctx context.Context, res Resource, action string, params Params) (*Envelope, error)
	// Invoke runs a named command on a resource, e.g. notifications/readAll.
	Invoke(ctx context.Context, res Resource, action string, body any) (*Envelope, error)
}
