package progression

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jtandoc/speakquest/internal/api"
	"github.com/jtandoc/speakquest/internal/catalog"
	"github.com/jtandoc/speakquest/internal/progress"
)

// fakeSubmitter scripts attempt results per activity id.
type fakeSubmitter struct {
	scores map[string]float64
	passed map[string]bool
	err    error

	// started/release turn SubmitAttempt into a blocking call when set.
	started chan struct{}
	release chan struct{}

	calls []api.AttemptRequest
}

func (f *fakeSubmitter) SubmitAttempt(_ context.Context, req api.AttemptRequest) (api.AttemptResult, error) {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	f.calls = append(f.calls, req)
	if f.err != nil {
		return api.AttemptResult{}, f.err
	}
	return api.AttemptResult{
		Score:  f.scores[req.ActivityID],
		Passed: f.passed[req.ActivityID],
	}, nil
}

// memRepo records persistence traffic.
type memRepo struct {
	snaps   map[progress.Key]*progress.Snapshot
	last    *progress.LastLesson
	sets    int
	deletes int
}

func newMemRepo() *memRepo {
	return &memRepo{snaps: make(map[progress.Key]*progress.Snapshot)}
}

func (r *memRepo) Get(_ context.Context, key progress.Key) (*progress.Snapshot, error) {
	return r.snaps[key], nil
}

func (r *memRepo) Set(_ context.Context, key progress.Key, snap *progress.Snapshot) error {
	r.sets++
	cp := *snap
	r.snaps[key] = &cp
	return nil
}

func (r *memRepo) Delete(_ context.Context, key progress.Key) error {
	r.deletes++
	delete(r.snaps, key)
	return nil
}

func (r *memRepo) SetLast(_ context.Context, last *progress.LastLesson) error {
	cp := *last
	r.last = &cp
	return nil
}

func (r *memRepo) Last(_ context.Context) (*progress.LastLesson, error) {
	return r.last, nil
}

func testCatalog(t *testing.T, n int) *catalog.Catalog {
	t.Helper()
	acts := make([]catalog.Activity, n)
	for i := range acts {
		acts[i] = catalog.Activity{ID: fmt.Sprintf("a%d", i+1), Kind: "mcq"}
	}
	cat, err := catalog.New("lesson-1", "en", 1, acts)
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return cat
}

func newTestEngine(t *testing.T, cat *catalog.Catalog, sub Submitter, repo progress.Repo) *Engine {
	t.Helper()
	eng, err := New(Config{
		Catalog:   cat,
		Submitter: sub,
		Progress:  repo,
		DeepLink:  NoDeepLink,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng
}

func TestForwardTraversal_NoSkips(t *testing.T) {
	cat := testCatalog(t, 4)
	sub := &fakeSubmitter{scores: map[string]float64{"a1": 100, "a2": 90, "a3": 80, "a4": 70}}
	eng := newTestEngine(t, cat, sub, newMemRepo())

	var visited []string
	for {
		act, ok := eng.Current()
		if !ok {
			break
		}
		visited = append(visited, act.ID)
		if _, err := eng.Submit(context.Background(), Submission{}); err != nil {
			t.Fatalf("submit %s: %v", act.ID, err)
		}
	}

	want := []string{"a1", "a2", "a3", "a4"}
	if len(visited) != len(want) {
		t.Fatalf("visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visited[%d] = %s, want %s", i, visited[i], want[i])
		}
	}

	state := eng.State()
	if state.Phase != PhaseCompleted {
		t.Errorf("Phase = %s, want completed", state.Phase)
	}
	if len(state.ReviewQueue) != 0 {
		t.Errorf("ReviewQueue = %v, want empty", state.ReviewQueue)
	}
	if len(state.ScoreHistory) != 4 {
		t.Errorf("ScoreHistory length = %d, want 4", len(state.ScoreHistory))
	}
}

func TestSkippedActivities_ReviewedInSkipOrder(t *testing.T) {
	cat := testCatalog(t, 4)
	sub := &fakeSubmitter{scores: map[string]float64{}}
	eng := newTestEngine(t, cat, sub, newMemRepo())

	// Skip a2 and a4 during the forward pass.
	skip := map[string]bool{"a2": true, "a4": true}
	for i := 0; i < 4; i++ {
		act, _ := eng.Current()
		if _, err := eng.Submit(context.Background(), Submission{Skipped: skip[act.ID]}); err != nil {
			t.Fatalf("submit %s: %v", act.ID, err)
		}
	}

	state := eng.State()
	if state.Phase != PhaseReview {
		t.Fatalf("Phase = %s, want review", state.Phase)
	}
	if len(state.ReviewQueue) != 2 || state.ReviewQueue[0] != "a2" || state.ReviewQueue[1] != "a4" {
		t.Fatalf("ReviewQueue = %v, want [a2 a4]", state.ReviewQueue)
	}

	var reviewed []string
	for {
		act, ok := eng.Current()
		if !ok {
			break
		}
		reviewed = append(reviewed, act.ID)
		if _, err := eng.Submit(context.Background(), Submission{}); err != nil {
			t.Fatalf("review submit %s: %v", act.ID, err)
		}
	}

	if len(reviewed) != 2 || reviewed[0] != "a2" || reviewed[1] != "a4" {
		t.Errorf("reviewed %v, want [a2 a4]", reviewed)
	}
	state = eng.State()
	if state.Phase != PhaseCompleted {
		t.Errorf("Phase = %s, want completed", state.Phase)
	}
	if len(state.ScoreHistory) != 6 {
		t.Errorf("ScoreHistory length = %d, want 6 (4 forward + 2 review)", len(state.ScoreHistory))
	}
}

func TestEndToEnd_SkipMiddleActivity(t *testing.T) {
	cat := testCatalog(t, 3)
	sub := &fakeSubmitter{
		scores: map[string]float64{"a1": 100, "a2": 0, "a3": 100},
		passed: map[string]bool{"a1": true, "a3": true},
	}
	eng := newTestEngine(t, cat, sub, newMemRepo())

	if _, err := eng.Submit(context.Background(), Submission{}); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Submit(context.Background(), Submission{Skipped: true}); err != nil {
		t.Fatal(err)
	}
	step, err := eng.Submit(context.Background(), Submission{})
	if err != nil {
		t.Fatal(err)
	}
	if step.Phase != PhaseReview {
		t.Fatalf("after forward pass Phase = %s, want review", step.Phase)
	}

	act, ok := eng.Current()
	if !ok || act.ID != "a2" {
		t.Fatalf("review activity = %v (ok=%v), want a2", act.ID, ok)
	}
	step, err = eng.Submit(context.Background(), Submission{})
	if err != nil {
		t.Fatal(err)
	}
	if !step.Completed {
		t.Error("expected lesson completed after reviewing a2")
	}
	if got := len(eng.State().ScoreHistory); got != 4 {
		t.Errorf("ScoreHistory length = %d, want 4", got)
	}
}

func TestReviewQueue_NoDuplicates(t *testing.T) {
	var s State
	s.enqueueReview("a2")
	s.enqueueReview("a3")
	s.enqueueReview("a2")
	if len(s.ReviewQueue) != 2 {
		t.Errorf("ReviewQueue = %v, want [a2 a3]", s.ReviewQueue)
	}
}

func TestSubmitFailure_LeavesStateUnchanged(t *testing.T) {
	cat := testCatalog(t, 3)
	sub := &fakeSubmitter{err: errors.New("network down")}
	eng := newTestEngine(t, cat, sub, newMemRepo())

	_, err := eng.Submit(context.Background(), Submission{})
	var attemptErr *AttemptError
	if !errors.As(err, &attemptErr) {
		t.Fatalf("err = %v, want *AttemptError", err)
	}
	if attemptErr.ActivityID != "a1" {
		t.Errorf("ActivityID = %s, want a1", attemptErr.ActivityID)
	}

	state := eng.State()
	if state.ForwardIndex != 0 || len(state.ScoreHistory) != 0 {
		t.Errorf("state changed after failed submit: index=%d history=%v", state.ForwardIndex, state.ScoreHistory)
	}

	// The same activity is retryable once the transport recovers.
	sub.err = nil
	if _, err := eng.Submit(context.Background(), Submission{}); err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if got := eng.State().ForwardIndex; got != 1 {
		t.Errorf("ForwardIndex after retry = %d, want 1", got)
	}
}

func TestSubmit_RejectsSecondPendingAttempt(t *testing.T) {
	cat := testCatalog(t, 2)
	sub := &fakeSubmitter{
		scores:  map[string]float64{},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	eng := newTestEngine(t, cat, sub, newMemRepo())

	done := make(chan error, 1)
	go func() {
		_, err := eng.Submit(context.Background(), Submission{})
		done <- err
	}()
	<-sub.started

	if _, err := eng.Submit(context.Background(), Submission{}); !errors.Is(err, ErrAttemptPending) {
		t.Errorf("second submit err = %v, want ErrAttemptPending", err)
	}

	close(sub.release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if got := eng.State().ForwardIndex; got != 1 {
		t.Errorf("ForwardIndex = %d, want 1 (single advance)", got)
	}
}

func TestSubmit_AfterCompleted(t *testing.T) {
	cat := testCatalog(t, 1)
	sub := &fakeSubmitter{scores: map[string]float64{}}
	eng := newTestEngine(t, cat, sub, newMemRepo())

	if _, err := eng.Submit(context.Background(), Submission{}); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Submit(context.Background(), Submission{}); !errors.Is(err, ErrLessonCompleted) {
		t.Errorf("err = %v, want ErrLessonCompleted", err)
	}
}

func TestSnapshot_PersistedDuringForwardOnly(t *testing.T) {
	cat := testCatalog(t, 3)
	repo := newMemRepo()
	sub := &fakeSubmitter{scores: map[string]float64{"a1": 50, "a2": 60, "a3": 70}}
	eng := newTestEngine(t, cat, sub, repo)

	// a1 passes, a2 skipped, a3 passes: two forward advances persist,
	// entering review deletes the snapshot, review persists nothing.
	if _, err := eng.Submit(context.Background(), Submission{}); err != nil {
		t.Fatal(err)
	}
	key := progress.Key{LessonID: "lesson-1", Locale: "en"}
	snap := repo.snaps[key]
	if snap == nil {
		t.Fatal("expected snapshot after first forward advance")
	}
	if snap.Index != 1 || snap.ActivityID != "a2" {
		t.Errorf("snapshot = {index=%d id=%s}, want {index=1 id=a2}", snap.Index, snap.ActivityID)
	}
	if len(snap.Scores) != 1 {
		t.Errorf("snapshot scores length = %d, want 1", len(snap.Scores))
	}

	if _, err := eng.Submit(context.Background(), Submission{Skipped: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Submit(context.Background(), Submission{}); err != nil {
		t.Fatal(err)
	}

	if repo.snaps[key] != nil {
		t.Error("expected snapshot deleted on entering review")
	}
	setsBefore := repo.sets
	if _, err := eng.Submit(context.Background(), Submission{}); err != nil {
		t.Fatal(err)
	}
	if repo.sets != setsBefore {
		t.Errorf("review submit persisted a snapshot (sets %d -> %d)", setsBefore, repo.sets)
	}
	if repo.deletes != 1 {
		t.Errorf("deletes = %d, want 1", repo.deletes)
	}
	if repo.last == nil || repo.last.LessonID != "lesson-1" {
		t.Error("expected last-lesson memento recorded")
	}
}

func TestPreempt_PersistsForwardState(t *testing.T) {
	cat := testCatalog(t, 3)
	repo := newMemRepo()
	sub := &fakeSubmitter{scores: map[string]float64{}}
	eng := newTestEngine(t, cat, sub, repo)

	eng.Preempt(context.Background())

	key := progress.Key{LessonID: "lesson-1", Locale: "en"}
	snap := repo.snaps[key]
	if snap == nil {
		t.Fatal("expected snapshot after preempt")
	}
	if snap.Index != 0 || snap.ActivityID != "a1" {
		t.Errorf("snapshot = {index=%d id=%s}, want {index=0 id=a1}", snap.Index, snap.ActivityID)
	}
}

func TestPreempt_NoopAfterCompletion(t *testing.T) {
	cat := testCatalog(t, 1)
	repo := newMemRepo()
	sub := &fakeSubmitter{scores: map[string]float64{}}
	eng := newTestEngine(t, cat, sub, repo)

	if _, err := eng.Submit(context.Background(), Submission{}); err != nil {
		t.Fatal(err)
	}
	sets := repo.sets
	eng.Preempt(context.Background())
	if repo.sets != sets {
		t.Error("preempt after completion wrote a snapshot")
	}
}

func TestNew_RestoresScoresFromSnapshot(t *testing.T) {
	cat := testCatalog(t, 3)
	sub := &fakeSubmitter{scores: map[string]float64{}}
	eng, err := New(Config{
		Catalog:   cat,
		Submitter: sub,
		Progress:  newMemRepo(),
		Snapshot:  &progress.Snapshot{Index: 1, ActivityID: "a2", Scores: []float64{85}},
		DeepLink:  NoDeepLink,
	})
	if err != nil {
		t.Fatal(err)
	}

	act, _ := eng.Current()
	if act.ID != "a2" {
		t.Errorf("resumed activity = %s, want a2", act.ID)
	}
	if got := len(eng.State().ScoreHistory); got != 1 {
		t.Errorf("restored ScoreHistory length = %d, want 1", got)
	}
}

func TestNew_RequiresCatalog(t *testing.T) {
	_, err := New(Config{Submitter: &fakeSubmitter{}, DeepLink: NoDeepLink})
	if !errors.Is(err, catalog.ErrEmptyCatalog) {
		t.Errorf("err = %v, want ErrEmptyCatalog", err)
	}
}

func TestSubmit_SendsSkipFlagAndLessonScope(t *testing.T) {
	cat := testCatalog(t, 2)
	sub := &fakeSubmitter{scores: map[string]float64{}}
	eng := newTestEngine(t, cat, sub, newMemRepo())

	if _, err := eng.Submit(context.Background(), Submission{Skipped: true}); err != nil {
		t.Fatal(err)
	}
	if len(sub.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(sub.calls))
	}
	req := sub.calls[0]
	if !req.Skipped || req.ActivityID != "a1" || req.LessonID != "lesson-1" || req.Locale != "en" {
		t.Errorf("request = %+v, want skipped a1 in lesson-1/en", req)
	}
}
