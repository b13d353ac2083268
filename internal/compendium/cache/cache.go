// Package cache decorates a compendium.Source with bounded in-memory LRU
// caches. Compendium data is static, so entries never expire.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vbonduro/drakdex/internal/compendium"
)

const listKey = ""

type Source struct {
	next     compendium.Source
	lists    *lru.Cache[string, []compendium.MonsterRef]
	monsters *lru.Cache[string, *compendium.Monster]
}

func New(next compendium.Source, size int) (*Source, error) {
	monsters, err := lru.New[string, *compendium.Monster](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create monster cache: %w", err)
	}
	lists, err := lru.New[string, []compendium.MonsterRef](1)
	if err != nil {
		return nil, fmt.Errorf("failed to create list cache: %w", err)
	}
	return &Source{next: next, lists: lists, monsters: monsters}, nil
}

func (s *Source) List(ctx context.Context) ([]compendium.MonsterRef, error) {
	if refs, ok := s.lists.Get(listKey); ok {
		return refs, nil
	}
	refs, err := s.next.List(ctx)
	if err != nil {
		return nil, err
	}
	s.lists.Add(listKey, refs)
	return refs, nil
}

func (s *Source) Get(ctx context.Context, index string) (*compendium.Monster, error) {
	if m, ok := s.monsters.Get(index); ok {
		return m, nil
	}
	m, err := s.next.Get(ctx, index)
	if err != nil {
		return nil, err
	}
	s.monsters.Add(index, m)
	return m, nil
}
