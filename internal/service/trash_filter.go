package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/lo"

	"go-office-trash/internal/model"
	"go-office-trash/internal/retention"
)

// TrashFilter composes the list predicates the trash screen offers. Zero
// values match everything.
type TrashFilter struct {
	EntityTypes     []model.EntityType
	DeletedBy       string
	DeletedFrom     time.Time
	DeletedTo       time.Time
	CanRestore      *bool
	NameGlob        string
	Search          string
	ExpiryState     retention.State
	IncludeRestored bool
	Now             time.Time
	NearExpiryDays  int
	Page            int
	Limit           int
}

type trashPredicate func(model.TrashEntry) bool

func (f TrashFilter) predicates() ([]trashPredicate, error) {
	preds := make([]trashPredicate, 0, 8)

	if len(f.EntityTypes) > 0 {
		types := lo.SliceToMap(f.EntityTypes, func(t model.EntityType) (model.EntityType, bool) { return t, true })
		preds = append(preds, func(e model.TrashEntry) bool { return types[e.EntityType] })
	}

	if by := strings.TrimSpace(f.DeletedBy); by != "" {
		preds = append(preds, func(e model.TrashEntry) bool {
			return e.DeletedBy == by || strings.EqualFold(e.DeletedByName, by)
		})
	}

	if !f.DeletedFrom.IsZero() {
		from := f.DeletedFrom
		preds = append(preds, func(e model.TrashEntry) bool { return !e.DeletedAt.Before(from) })
	}
	if !f.DeletedTo.IsZero() {
		to := f.DeletedTo
		preds = append(preds, func(e model.TrashEntry) bool { return !e.DeletedAt.After(to) })
	}

	if f.CanRestore != nil {
		want := *f.CanRestore
		preds = append(preds, func(e model.TrashEntry) bool { return e.CanRestore == want })
	}

	if pattern := strings.TrimSpace(f.NameGlob); pattern != "" {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid name pattern %q", model.ErrInvalidInput, pattern)
		}
		preds = append(preds, func(e model.TrashEntry) bool { return g.Match(strings.ToLower(e.EntityName)) })
	}

	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		preds = append(preds, func(e model.TrashEntry) bool {
			return strings.Contains(strings.ToLower(e.EntityName), search) ||
				strings.Contains(strings.ToLower(e.EntityDescription), search) ||
				strings.Contains(strings.ToLower(e.DeleteReason), search) ||
				strings.Contains(strings.ToLower(e.OriginalID), search)
		})
	}

	if f.ExpiryState != "" {
		switch f.ExpiryState {
		case retention.StateActive, retention.StateNearExpiry, retention.StateOverdue:
		default:
			return nil, fmt.Errorf("%w: unknown expiry state %q", model.ErrInvalidInput, f.ExpiryState)
		}
		now, threshold, state := f.Now, f.NearExpiryDays, f.ExpiryState
		preds = append(preds, func(e model.TrashEntry) bool {
			return !e.IsRestored() && retention.Classify(e.AutoDeleteAt, now, threshold) == state
		})
	}

	return preds, nil
}

// List returns entries matching filter, newest deletion first, paginated.
func (s *TrashService) List(ctx context.Context, filter TrashFilter) ([]model.TrashEntry, model.Meta, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}
	if filter.Now.IsZero() {
		filter.Now = s.now()
	}
	if filter.NearExpiryDays <= 0 {
		filter.NearExpiryDays = retention.DefaultNearExpiryDays
	}

	preds, err := filter.predicates()
	if err != nil {
		return nil, model.Meta{}, err
	}

	entries, err := s.trash.List(ctx, filter.IncludeRestored)
	if err != nil {
		return nil, model.Meta{}, err
	}

	items := lo.Filter(entries, func(e model.TrashEntry, _ int) bool {
		return lo.EveryBy(preds, func(p trashPredicate) bool { return p(e) })
	})

	sort.SliceStable(items, func(i int, j int) bool {
		return items[i].DeletedAt.After(items[j].DeletedAt)
	})

	total := len(items)
	start := min((filter.Page-1)*filter.Limit, total)
	end := min(start+filter.Limit, total)

	return items[start:end], model.NewMeta(filter.Page, filter.Limit, total), nil
}
