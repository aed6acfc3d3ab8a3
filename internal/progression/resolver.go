package progression

import (
	"github.com/jtandoc/speakquest/internal/catalog"
	"github.com/jtandoc/speakquest/internal/progress"
)

// NoDeepLink marks the absence of an explicit resume index.
const NoDeepLink = -1

// ResolveStart decides the starting forward index for a run.
//
// Priority: an in-bounds deep-link index wins; then the saved activity
// id if it still exists in the catalog (survives catalog reordering
// between runs); then the saved numeric index clamped to bounds; then 0.
func ResolveStart(snap *progress.Snapshot, deepLink int, cat *catalog.Catalog) int {
	if cat == nil || cat.Len() == 0 {
		return 0
	}

	if deepLink >= 0 && deepLink < cat.Len() {
		return deepLink
	}

	if snap == nil {
		return 0
	}

	if snap.ActivityID != "" {
		if i, ok := cat.IndexOf(snap.ActivityID); ok {
			return i
		}
	}

	idx := snap.Index
	if idx < 0 {
		idx = 0
	}
	if last := cat.Len() - 1; idx > last {
		idx = last
	}
	return idx
}
