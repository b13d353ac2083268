// Package remote reads the monster compendium through the backend's
// /api/external proxy.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/vbonduro/drakdex/internal/compendium"
)

const monstersPath = "/api/external/monsters"

// getter is the subset of backend.Client the source requires.
type getter interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

type Source struct {
	client getter
}

func New(client getter) *Source {
	return &Source{client: client}
}

// List accepts both a bare array and the {"count", "results"} envelope of
// the upstream API.
func (s *Source) List(ctx context.Context) ([]compendium.MonsterRef, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, monstersPath, nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to list monsters: %w", err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var refs []compendium.MonsterRef
		if err := json.Unmarshal(raw, &refs); err != nil {
			return nil, fmt.Errorf("failed to decode monsters: %w", err)
		}
		return refs, nil
	}

	var envelope struct {
		Results []compendium.MonsterRef `json:"results"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode monsters: %w", err)
	}
	return envelope.Results, nil
}

func (s *Source) Get(ctx context.Context, index string) (*compendium.Monster, error) {
	var m compendium.Monster
	if err := s.client.Get(ctx, monstersPath+"/"+url.PathEscape(index), nil, &m); err != nil {
		return nil, fmt.Errorf("failed to get monster %s: %w", index, err)
	}
	if m.Index == "" {
		m.Index = index
	}
	return &m, nil
}
