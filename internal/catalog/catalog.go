package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyCatalog is returned when a lesson has no activities.
var ErrEmptyCatalog = errors.New("catalog: lesson has no activities")

// Activity is one exercise unit within a lesson. The engine treats Kind
// and RenderPayload as opaque; they exist for the renderer dispatch.
type Activity struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	RenderPayload json.RawMessage `json:"render_payload,omitempty"`
}

// Catalog is the ordered, immutable list of activities for one lesson
// run. Order defines the forward-pass traversal order.
type Catalog struct {
	LessonID  string
	Locale    string
	ChapterID int

	activities []Activity
	index      map[string]int
}

// New builds a Catalog from an ordered activity list. Activity IDs must
// be non-empty and unique within the lesson.
func New(lessonID, locale string, chapterID int, activities []Activity) (*Catalog, error) {
	if len(activities) == 0 {
		return nil, ErrEmptyCatalog
	}

	index := make(map[string]int, len(activities))
	for i, a := range activities {
		if a.ID == "" {
			return nil, fmt.Errorf("catalog: activity at position %d has no id", i)
		}
		if _, dup := index[a.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate activity id %q", a.ID)
		}
		index[a.ID] = i
	}

	acts := make([]Activity, len(activities))
	copy(acts, activities)

	return &Catalog{
		LessonID:   lessonID,
		Locale:     locale,
		ChapterID:  chapterID,
		activities: acts,
		index:      index,
	}, nil
}

// Len returns the number of activities.
func (c *Catalog) Len() int {
	return len(c.activities)
}

// At returns the activity at position i in forward order.
func (c *Catalog) At(i int) Activity {
	return c.activities[i]
}

// ByID returns the activity with the given id.
func (c *Catalog) ByID(id string) (Activity, bool) {
	i, ok := c.index[id]
	if !ok {
		return Activity{}, false
	}
	return c.activities[i], true
}

// IndexOf returns the current position of the activity with the given
// id. Positions can change between runs when a teacher reorders content.
func (c *Catalog) IndexOf(id string) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

// Activities returns a copy of the ordered activity list.
func (c *Catalog) Activities() []Activity {
	out := make([]Activity, len(c.activities))
	copy(out, c.activities)
	return out
}
