package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/drakdex/internal/domain"
)

// walkConcurrency bounds parallel folder expansions during a walk.
const walkConcurrency = 4

// Collect walks the caller's whole folder tree of category and gathers every
// entity found, level by level. Folders reached twice are expanded once. An
// unauthenticated client yields empty content.
func (l *Loader) Collect(ctx context.Context, client reader, category domain.Category) (Content, error) {
	if !client.Authenticated() {
		return Content{}, nil
	}
	roots, err := l.roots(ctx, client, category, domain.ScopeMine)
	if err != nil {
		return Content{}, err
	}

	var (
		mu   sync.Mutex
		all  Content
		seen = make(map[int64]bool)
	)
	level := make([]int64, 0, len(roots))
	for _, f := range roots {
		if !seen[f.ID] {
			seen[f.ID] = true
			level = append(level, f.ID)
		}
	}

	for len(level) > 0 {
		var next []int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(walkConcurrency)
		for _, id := range level {
			g.Go(func() error {
				c, err := l.folder(gctx, client, id)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				all.Creatures = append(all.Creatures, c.Creatures...)
				all.Items = append(all.Items, c.Items...)
				all.Spells = append(all.Spells, c.Spells...)
				all.NPCs = append(all.NPCs, c.NPCs...)
				for _, sub := range c.Folders {
					if !seen[sub.ID] {
						seen[sub.ID] = true
						next = append(next, sub.ID)
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Content{}, fmt.Errorf("failed to walk %s folders: %w", category, err)
		}
		level = next
	}

	// Expansion order is nondeterministic.
	slices.SortFunc(all.Creatures, func(a, b domain.Creature) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(all.Items, func(a, b domain.Item) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(all.Spells, func(a, b domain.Spell) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(all.NPCs, func(a, b domain.NPC) int { return cmp.Compare(a.ID, b.ID) })

	l.logger.Debug("collected catalog", "category", category, "folders", len(seen))
	return all.ForCategory(category), nil
}
