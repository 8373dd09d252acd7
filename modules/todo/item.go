package todo

import (
	"math"
	"time"

	"github.com/dmitrymomot/todokit/pkg/validator"
)

// MaxTitleLength is the longest title accepted, in characters.
const MaxTitleLength = 255

// MaxPosition is the largest position the storage column holds.
const MaxPosition = math.MaxInt32

// Item is a single todo. Position defines display order and is assigned
// once at creation; gaps left by deletions are never renumbered.
type Item struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateParams describes a new item. A nil Position appends the item after
// the current maximum.
type CreateParams struct {
	Title    string
	Position *int
}

// Validate reports title and position problems as validator.ValidationErrors.
func (p CreateParams) Validate() error {
	rules := titleRules(p.Title)
	if p.Position != nil {
		rules = append(rules, positionRules(*p.Position)...)
	}
	return validator.Apply(rules...)
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Title     *string
	Completed *bool
	Position  *int
}

func (p Patch) Validate() error {
	var rules []validator.Rule
	if p.Title != nil {
		rules = append(rules, titleRules(*p.Title)...)
	}
	if p.Position != nil {
		rules = append(rules, positionRules(*p.Position)...)
	}
	return validator.Apply(rules...)
}

func (p Patch) apply(it *Item) {
	if p.Title != nil {
		it.Title = *p.Title
	}
	if p.Completed != nil {
		it.Completed = *p.Completed
	}
	if p.Position != nil {
		it.Position = *p.Position
	}
}

func titleRules(title string) []validator.Rule {
	return []validator.Rule{
		validator.Required("title", title),
		validator.MinLen("title", title, 1),
		validator.MaxLen("title", title, MaxTitleLength),
		validator.ValidUTF8("title", title),
	}
}

func positionRules(position int) []validator.Rule {
	return []validator.Rule{
		validator.Min("position", position, 0),
		validator.Max("position", position, MaxPosition),
	}
}

// Filter selects items. Zero-value fields match everything.
type Filter struct {
	Completed     *bool
	UpdatedBefore *time.Time
}

// CompletedFilter matches completed items.
func CompletedFilter() Filter {
	completed := true
	return Filter{Completed: &completed}
}

// CompletedBefore matches completed items last updated strictly before cutoff.
func CompletedBefore(cutoff time.Time) Filter {
	f := CompletedFilter()
	f.UpdatedBefore = &cutoff
	return f
}

// Match reports whether it satisfies the filter.
func (f Filter) Match(it Item) bool {
	if f.Completed != nil && it.Completed != *f.Completed {
		return false
	}
	if f.UpdatedBefore != nil && !it.UpdatedAt.Before(*f.UpdatedBefore) {
		return false
	}
	return true
}
