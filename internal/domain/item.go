package domain

type ItemType string

const (
	ItemWeapon     ItemType = "ARMA"
	ItemArmor      ItemType = "ARMADURA"
	ItemAccessory  ItemType = "ACESSORIO"
	ItemConsumable ItemType = "CONSUMIVEL"
	ItemTool       ItemType = "FERRAMENTA"
	ItemTreasure   ItemType = "TESOURO"
	ItemOther      ItemType = "OUTRO"
)

// Icon returns the glyph shown on item cards.
func (t ItemType) Icon() string {
	switch t {
	case ItemWeapon:
		return "⚔️"
	case ItemArmor:
		return "🛡️"
	case ItemAccessory:
		return "💍"
	case ItemConsumable:
		return "🧪"
	case ItemTool:
		return "🔨"
	case ItemTreasure:
		return "💎"
	default:
		return "🪶"
	}
}

// Rarity is ordered from COMUM to ARTEFATO.
type Rarity string

const (
	RarityCommon    Rarity = "COMUM"
	RarityUncommon  Rarity = "INCOMUM"
	RarityRare      Rarity = "RARO"
	RarityEpic      Rarity = "EPICO"
	RarityLegendary Rarity = "LENDARIO"
	RarityArtifact  Rarity = "ARTEFATO"
)

var rarityOrder = []Rarity{RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary, RarityArtifact}

// Rank is the position of r in the rarity scale, or -1 when unknown.
func (r Rarity) Rank() int {
	for i, v := range rarityOrder {
		if v == r {
			return i
		}
	}
	return -1
}

// Less reports whether r ranks below other.
func (r Rarity) Less(other Rarity) bool { return r.Rank() < other.Rank() }

// ColorClass is the CSS class used by the card border and text.
func (r Rarity) ColorClass() string {
	switch r {
	case RarityUncommon:
		return "rarity-uncommon"
	case RarityRare:
		return "rarity-rare"
	case RarityEpic:
		return "rarity-epic"
	case RarityLegendary:
		return "rarity-legendary"
	case RarityArtifact:
		return "rarity-artifact"
	default:
		return "rarity-common"
	}
}
