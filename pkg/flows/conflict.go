package flows

import (
	"sort"

	"github.com/lodge-sh/lodge/pkg/types"
)

// ResolveConflicts orders planned writes and resolves same-target
// replace conflicts by priority: the highest-priority writer wins, the
// rest are dropped and reported. Ties break on package name so the
// outcome is deterministic. Conflicts are a report, not an error;
// installation continues with the surviving writes.
//
// Merge and composite writes to a shared target are not conflicts:
// all of them survive, ordered by ascending
// priority so higher-priority packages write last.
func ResolveConflicts(writes []Write) ([]Write, []types.ConflictRecord) {
	sorted := append([]Write(nil), writes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TargetRel != sorted[j].TargetRel {
			return sorted[i].TargetRel < sorted[j].TargetRel
		}
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].PackageName < sorted[j].PackageName
	})

	var surviving []Write
	var conflicts []types.ConflictRecord

	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j].TargetRel == sorted[i].TargetRel {
			j++
		}
		group := sorted[i:j]
		i = j

		replaceset := make([]Write, 0, len(group))
		rest := make([]Write, 0, len(group))
		for _, w := range group {
			if w.Strategy == types.MergeReplace {
				replaceset = append(replaceset, w)
			} else {
				rest = append(rest, w)
			}
		}

		distinct := make(map[string]bool, len(replaceset))
		for _, w := range replaceset {
			distinct[types.NormalizeName(w.PackageName)] = true
		}

		if len(replaceset) > 1 && len(distinct) == 1 {
			// One package writing the same path repeatedly is not a
			// cross-package conflict; keep the first resolved write.
			replaceset = replaceset[:1]
		}

		if len(replaceset) > 1 {
			winner := replaceset[0]
			conflict := types.ConflictRecord{
				TargetPath: winner.TargetRel,
				Winner:     types.PriorityRef{PackageName: winner.PackageName, Priority: winner.Priority},
			}
			for _, loser := range replaceset[1:] {
				conflict.Losers = append(conflict.Losers,
					types.PriorityRef{PackageName: loser.PackageName, Priority: loser.Priority})
			}
			conflicts = append(conflicts, conflict)
			replaceset = replaceset[:1]
		}

		surviving = append(surviving, replaceset...)
		// Composable strategies apply lowest priority first so the
		// highest-priority package's keys land last.
		for k := len(rest) - 1; k >= 0; k-- {
			surviving = append(surviving, rest[k])
		}
	}

	return surviving, conflicts
}
