// Package progression is the lesson activity state machine: one forward
// pass over the catalog, a review pass over whatever was skipped, and a
// terminal completed state with a star grade.
package progression

import "fmt"

// Phase is the traversal phase of a lesson run.
type Phase int

const (
	// PhaseForward is the first traversal, in catalog order.
	PhaseForward Phase = iota
	// PhaseReview revisits activities skipped during the forward pass.
	PhaseReview
	// PhaseCompleted is terminal.
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseForward:
		return "forward"
	case PhaseReview:
		return "review"
	case PhaseCompleted:
		return "completed"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// State is the in-memory progression state, owned exclusively by the
// engine during a run.
type State struct {
	Phase        Phase
	ForwardIndex int

	// ReviewQueue holds ids skipped during the forward pass, each exactly
	// once, in skip order.
	ReviewQueue []string
	ReviewIndex int

	// ScoreHistory has one entry per resolution event, forward and
	// review, pass or skip, in event order.
	ScoreHistory []float64
}

// enqueueReview appends id to the review queue unless already present.
func (s *State) enqueueReview(id string) {
	for _, queued := range s.ReviewQueue {
		if queued == id {
			return
		}
	}
	s.ReviewQueue = append(s.ReviewQueue, id)
}

// clone returns a deep copy safe to hand outside the engine.
func (s *State) clone() State {
	out := *s
	out.ReviewQueue = append([]string(nil), s.ReviewQueue...)
	out.ScoreHistory = append([]float64(nil), s.ScoreHistory...)
	return out
}
