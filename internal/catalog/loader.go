package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Fetcher retrieves the raw activities payload for a lesson in a locale.
type Fetcher interface {
	Activities(ctx context.Context, lessonID, locale string) ([]byte, error)
}

// LoadError wraps transport or payload failures while loading a catalog.
// It is fatal to starting a run; callers surface it with a retry option.
type LoadError struct {
	LessonID string
	Locale   string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load catalog for lesson %s (locale %s): %v", e.LessonID, e.Locale, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader fetches and validates lesson catalogs.
type Loader struct {
	fetcher Fetcher
	schema  *jsonschema.Schema
}

// NewLoader creates a Loader around the given fetcher, compiling the
// activities response schema once up front.
func NewLoader(fetcher Fetcher) (*Loader, error) {
	compiled, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile activities schema: %w", err)
	}
	return &Loader{fetcher: fetcher, schema: compiled}, nil
}

type activitiesResponse struct {
	Activities []Activity `json:"activities"`
	Meta       struct {
		ChapterID int `json:"chapter_id"`
	} `json:"meta"`
}

// Load fetches the ordered activity list for a lesson. It returns
// *LoadError on transport or payload failure and ErrEmptyCatalog when
// the lesson has no activities. Load has no side effects beyond the read.
func (l *Loader) Load(ctx context.Context, lessonID, locale string) (*Catalog, error) {
	raw, err := l.fetcher.Activities(ctx, lessonID, locale)
	if err != nil {
		return nil, &LoadError{LessonID: lessonID, Locale: locale, Err: err}
	}

	// The jsonschema library expects a parsed JSON value, not raw bytes.
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &LoadError{LessonID: lessonID, Locale: locale, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if err := l.schema.Validate(parsed); err != nil {
		return nil, &LoadError{LessonID: lessonID, Locale: locale, Err: fmt.Errorf("schema validation failed: %w", err)}
	}

	var resp activitiesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &LoadError{LessonID: lessonID, Locale: locale, Err: fmt.Errorf("decode response: %w", err)}
	}

	return New(lessonID, locale, resp.Meta.ChapterID, resp.Activities)
}

func compileSchema() (*jsonschema.Schema, error) {
	// Round-trip through JSON to get a clean any representation.
	defBytes, err := json.Marshal(activitiesSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var defParsed any
	if err := json.Unmarshal(defBytes, &defParsed); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	const schemaURL = "schema://lesson-activities.json"
	if err := c.AddResource(schemaURL, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	return c.Compile(schemaURL)
}
