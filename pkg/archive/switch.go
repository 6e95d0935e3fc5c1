package archive

import (
	"context"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/skillmatrix/pkg/logger"
	"github.com/jingkaihe/skillmatrix/pkg/project"
	"github.com/jingkaihe/skillmatrix/pkg/skills"
)

const maxConcurrentMoves = 4

// SourceChange records a skill whose assigned source differs between two
// assignments. An empty source means the skill follows the merged matrix.
type SourceChange struct {
	SkillID skills.SkillID
	From    string
	To      string
}

// LeavesLocal reports whether the skill is switching away from its local copy
func (c SourceChange) LeavesLocal() bool {
	return c.From == project.LocalSource && c.To != project.LocalSource
}

// EntersLocal reports whether the skill is switching to its local copy
func (c SourceChange) EntersLocal() bool {
	return c.To == project.LocalSource && c.From != project.LocalSource
}

// ApplyResult summarises the moves performed by ApplySourceChanges
type ApplyResult struct {
	Archived []skills.SkillID
	Restored []skills.SkillID
	// Unchanged lists changes that needed no filesystem move
	Unchanged []skills.SkillID
}

// DetectSourceChanges compares two skill-to-source assignments and returns
// the changes sorted by skill ID
func DetectSourceChanges(prev, next map[skills.SkillID]string) []SourceChange {
	seen := make(map[skills.SkillID]bool)
	var changes []SourceChange

	collect := func(id skills.SkillID) {
		if seen[id] {
			return
		}
		seen[id] = true
		if prev[id] != next[id] {
			changes = append(changes, SourceChange{SkillID: id, From: prev[id], To: next[id]})
		}
	}
	for id := range prev {
		collect(id)
	}
	for id := range next {
		collect(id)
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].SkillID < changes[j].SkillID })
	return changes
}

// ApplySourceChanges archives skills leaving the local source and restores
// skills entering it. Changes run concurrently and each one is attempted even
// when others fail; all failures are returned together.
func ApplySourceChanges(ctx context.Context, m *Manager, changes []SourceChange) (*ApplyResult, error) {
	var (
		mu     sync.Mutex
		result ApplyResult
		merr   *multierror.Error
	)

	record := func(list *[]skills.SkillID, id skills.SkillID, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			merr = multierror.Append(merr, err)
			return
		}
		*list = append(*list, id)
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentMoves)

	for _, change := range changes {
		g.Go(func() error {
			ctx := logger.WithFields(ctx, logrus.Fields{"component": "archive", "skill": change.SkillID})
			log := logger.G(ctx)

			switch {
			case change.LeavesLocal():
				if !m.HasLocalSkill(change.SkillID) {
					record(&result.Unchanged, change.SkillID, nil)
					return nil
				}
				err := m.ArchiveLocalSkill(ctx, change.SkillID)
				record(&result.Archived, change.SkillID, err)
			case change.EntersLocal():
				restored, err := m.RestoreArchivedSkill(ctx, change.SkillID)
				if err == nil && !restored {
					log.Debug("switching to local without an archived copy")
					record(&result.Unchanged, change.SkillID, nil)
					return nil
				}
				record(&result.Restored, change.SkillID, err)
			default:
				record(&result.Unchanged, change.SkillID, nil)
			}
			return nil
		})
	}
	_ = g.Wait()

	skills.SortIDs(result.Archived)
	skills.SortIDs(result.Restored)
	skills.SortIDs(result.Unchanged)

	return &result, merr.ErrorOrNil()
}
