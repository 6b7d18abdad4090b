package broadcast

import (
	"context"
	"fmt"
	"time"
)

// Audience selectors.
const (
	TargetAll       = "all"
	TargetLastDay   = "recent_day"
	TargetLastWeek  = "recent_week"
	TargetLastMonth = "recent_month"
	TargetSpecific  = "specific"
)

// Recency windows in seconds.
const (
	windowDay   = 86400
	windowWeek  = 604800
	windowMonth = 2592000
)

// Directory lists subscriber ids. activeSince == 0 means everyone.
type Directory interface {
	ListIDs(ctx context.Context, activeSince int64) ([]int64, error)
}

// Resolver materializes a symbolic audience selector into recipient ids.
type Resolver struct {
	dir Directory
	now func() time.Time
}

// NewResolver builds a resolver over the given directory.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir, now: time.Now}
}

// Resolve returns a deduplicated recipient list for the selector.
// The specific selector returns the literal id without an existence
// check; an unknown id simply fails at delivery time.
func (r *Resolver) Resolve(ctx context.Context, selector string, targetID int64) ([]int64, error) {
	switch selector {
	case TargetSpecific:
		if targetID == 0 {
			return nil, fmt.Errorf("broadcast: specific target without id")
		}
		return []int64{targetID}, nil
	case TargetAll:
		return r.list(ctx, 0)
	case TargetLastDay:
		return r.list(ctx, r.now().Unix()-windowDay)
	case TargetLastWeek:
		return r.list(ctx, r.now().Unix()-windowWeek)
	case TargetLastMonth:
		return r.list(ctx, r.now().Unix()-windowMonth)
	}
	return nil, fmt.Errorf("broadcast: unknown target selector %q", selector)
}

func (r *Resolver) list(ctx context.Context, activeSince int64) ([]int64, error) {
	ids, err := r.dir.ListIDs(ctx, activeSince)
	if err != nil {
		return nil, fmt.Errorf("broadcast: directory list: %w", err)
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
