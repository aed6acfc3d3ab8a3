package catalog

import (
	"errors"
	"testing"
)

func TestNew_RejectsEmptyCatalog(t *testing.T) {
	_, err := New("lesson-1", "en", 1, nil)
	if !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("err = %v, want ErrEmptyCatalog", err)
	}
}

func TestNew_RejectsDuplicateIDs(t *testing.T) {
	_, err := New("lesson-1", "en", 1, []Activity{
		{ID: "a1", Kind: "mcq"},
		{ID: "a1", Kind: "asr"},
	})
	if err == nil {
		t.Error("expected error for duplicate activity id")
	}
}

func TestNew_RejectsMissingID(t *testing.T) {
	_, err := New("lesson-1", "en", 1, []Activity{{Kind: "mcq"}})
	if err == nil {
		t.Error("expected error for missing activity id")
	}
}

func TestCatalog_Lookups(t *testing.T) {
	cat, err := New("lesson-1", "en", 7, []Activity{
		{ID: "a1", Kind: "mcq"},
		{ID: "a2", Kind: "asr"},
		{ID: "a3", Kind: "emotion"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if cat.Len() != 3 {
		t.Errorf("Len = %d, want 3", cat.Len())
	}
	if cat.ChapterID != 7 {
		t.Errorf("ChapterID = %d, want 7", cat.ChapterID)
	}
	if got := cat.At(1).ID; got != "a2" {
		t.Errorf("At(1).ID = %s, want a2", got)
	}

	act, ok := cat.ByID("a3")
	if !ok || act.Kind != "emotion" {
		t.Errorf("ByID(a3) = %+v (ok=%v), want emotion kind", act, ok)
	}
	if _, ok := cat.ByID("nope"); ok {
		t.Error("ByID(nope) should miss")
	}

	if i, ok := cat.IndexOf("a2"); !ok || i != 1 {
		t.Errorf("IndexOf(a2) = %d (ok=%v), want 1", i, ok)
	}
}

func TestActivities_ReturnsCopy(t *testing.T) {
	cat, err := New("lesson-1", "en", 1, []Activity{{ID: "a1", Kind: "mcq"}})
	if err != nil {
		t.Fatal(err)
	}
	acts := cat.Activities()
	acts[0].ID = "mutated"
	if cat.At(0).ID != "a1" {
		t.Error("mutating the returned slice changed the catalog")
	}
}
