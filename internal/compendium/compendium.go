// Package compendium looks up monsters from the third-party compendium the
// backend proxies and maps them onto creature drafts.
package compendium

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// imageHost serves the relative image paths of the compendium.
const imageHost = "https://www.dnd5eapi.co"

const maxLevel = 30

type Source interface {
	List(ctx context.Context) ([]MonsterRef, error)
	Get(ctx context.Context, index string) (*Monster, error)
}

type MonsterRef struct {
	Index string `json:"index"`
	Name  string `json:"name"`
}

type Monster struct {
	Index           string  `json:"index"`
	Name            string  `json:"name"`
	Size            string  `json:"size"`
	Type            string  `json:"type"`
	Alignment       string  `json:"alignment"`
	ChallengeRating float64 `json:"challenge_rating"`
	HitPoints       int     `json:"hit_points"`
	Description     string  `json:"desc"`
	Image           string  `json:"image"`
}

var creatureTypes = map[string]string{
	"dragon":    "Dragão",
	"undead":    "Morto-vivo",
	"beast":     "Fera",
	"humanoid":  "Humanoide",
	"fiend":     "Demônio",
	"elemental": "Elemental",
}

// CreatureType maps a compendium type onto the creature form's options.
func CreatureType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if v, ok := creatureTypes[t]; ok {
		return v
	}
	return "Monstruosidade"
}

// Level is the challenge rating rounded down into the creature level range.
func Level(cr float64) int {
	if math.IsNaN(cr) || cr < 0 {
		return 0
	}
	return int(math.Min(math.Floor(cr), maxLevel))
}

// Prefill returns creature draft values for m keyed by backend field.
func Prefill(m *Monster) map[string]string {
	values := map[string]string{
		"nome":      m.Name,
		"tipo":      CreatureType(m.Type),
		"nivel":     strconv.Itoa(Level(m.ChallengeRating)),
		"descricao": describe(m),
	}
	if m.Image != "" {
		img := m.Image
		if strings.HasPrefix(img, "/") {
			img = imageHost + img
		}
		values["imagemUrl"] = img
	}
	return values
}

func describe(m *Monster) string {
	if d := strings.TrimSpace(m.Description); d != "" {
		return d
	}
	var parts []string
	if m.Size != "" || m.Type != "" {
		parts = append(parts, strings.TrimSpace(m.Size+" "+m.Type))
	}
	if m.Alignment != "" {
		parts = append(parts, m.Alignment)
	}
	if m.HitPoints > 0 {
		parts = append(parts, fmt.Sprintf("%d PV", m.HitPoints))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ", ") + "."
}
