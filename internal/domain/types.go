package domain

import (
	"fmt"
	"strconv"
)

// Category partitions the folder tree into four independent hierarchies.
type Category string

const (
	CategoryCreature Category = "CRIATURA"
	CategoryItem     Category = "ITEM"
	CategorySpell    Category = "MAGIA"
	CategoryNPC      Category = "NPC"
)

// Categories lists every category in sidebar order.
var Categories = []Category{CategoryCreature, CategoryItem, CategorySpell, CategoryNPC}

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Label is the sidebar name of the category.
func (c Category) Label() string {
	switch c {
	case CategoryItem:
		return "Arsenal"
	case CategorySpell:
		return "Grimório"
	case CategoryNPC:
		return "População"
	default:
		return "Bestiário"
	}
}

// RootTitle is the heading shown at the root of the category for the given scope.
func (c Category) RootTitle(scope Scope) string {
	if scope == ScopePublic {
		switch c {
		case CategoryItem:
			return "Arsenais Públicos"
		case CategorySpell:
			return "Grimórios Públicos"
		case CategoryNPC:
			return "Populações Públicas"
		default:
			return "Bestiários Públicos"
		}
	}
	switch c {
	case CategoryItem:
		return "Meus Arsenais"
	case CategorySpell:
		return "Meus Grimórios"
	case CategoryNPC:
		return "Minha População"
	default:
		return "Meus Bestiários"
	}
}

// EntityKind is the kind of leaf record stored in folders of this category.
func (c Category) EntityKind() Kind {
	switch c {
	case CategoryItem:
		return KindItem
	case CategorySpell:
		return KindSpell
	case CategoryNPC:
		return KindNPC
	default:
		return KindCreature
	}
}

// Scope selects between the caller's own folders and the public ones.
type Scope string

const (
	ScopeMine   Scope = "mine"
	ScopePublic Scope = "public"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeMine, ScopePublic:
		return Scope(s), nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// Kind identifies a CRUD resource of the backend.
type Kind string

const (
	KindFolder   Kind = "pasta"
	KindCreature Kind = "criatura"
	KindItem     Kind = "item"
	KindSpell    Kind = "magia"
	KindNPC      Kind = "npc"
)

var Kinds = []Kind{KindFolder, KindCreature, KindItem, KindSpell, KindNPC}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// Endpoint is the collection path of the kind on the backend.
func (k Kind) Endpoint() string {
	switch k {
	case KindFolder:
		return "/api/pastas"
	case KindCreature:
		return "/api/criaturas"
	case KindItem:
		return "/api/itens"
	case KindSpell:
		return "/api/magias"
	case KindNPC:
		return "/api/npcs"
	}
	return ""
}

// ResourcePath is the path of one record of the kind.
func (k Kind) ResourcePath(id int64) string {
	return k.Endpoint() + "/" + strconv.FormatInt(id, 10)
}

// Label is the human name used in notifications and the delete modal.
func (k Kind) Label() string {
	switch k {
	case KindFolder:
		return "Pasta"
	case KindCreature:
		return "Criatura"
	case KindItem:
		return "Item"
	case KindSpell:
		return "Magia"
	case KindNPC:
		return "NPC"
	}
	return string(k)
}

// Profile is the identity snapshot persisted after login.
type Profile struct {
	Name     string `json:"nome"`
	Nickname string `json:"vulgo"`
}

type Folder struct {
	ID            int64    `json:"id"`
	Name          string   `json:"nome"`
	Public        bool     `json:"publica"`
	Category      Category `json:"categoria,omitempty"`
	ParentID      *int64   `json:"pastaPaiId"`
	CreatureCount int      `json:"quantidadeCriaturas,omitempty"`
	OwnerNickname string   `json:"donoVulgo,omitempty"`

	// Populated only when the folder is fetched in expanded form.
	Subfolders []Folder   `json:"subPastas,omitempty"`
	Creatures  []Creature `json:"criaturas,omitempty"`
	Items      []Item     `json:"itens,omitempty"`
	Spells     []Spell    `json:"magias,omitempty"`
	NPCs       []NPC      `json:"npcs,omitempty"`
}

type Creature struct {
	ID              int64  `json:"id"`
	Name            string `json:"nome"`
	Type            string `json:"tipo"`
	Level           int    `json:"nivel"`
	Description     string `json:"descricao"`
	ImageURL        string `json:"imagemUrl,omitempty"`
	CreatorNickname string `json:"criadorVulgo,omitempty"`
	FolderID        *int64 `json:"pastaId,omitempty"`
}

type Item struct {
	ID            int64    `json:"id"`
	Name          string   `json:"nome"`
	Description   string   `json:"descricao"`
	Type          ItemType `json:"tipo"`
	Rarity        Rarity   `json:"raridade"`
	Weight        *float64 `json:"peso"`
	Price         string   `json:"preco,omitempty"`
	Damage        string   `json:"dano,omitempty"`
	Defense       string   `json:"defesa,omitempty"`
	Properties    string   `json:"propriedades,omitempty"`
	ImageURL      string   `json:"imagemUrl,omitempty"`
	OwnerNickname string   `json:"donoVulgo,omitempty"`
	FolderID      *int64   `json:"pastaId,omitempty"`
}

type Spell struct {
	ID            int64  `json:"id"`
	Name          string `json:"nome"`
	School        string `json:"escola"`
	CastingTime   string `json:"tempoExecucao"`
	Range         string `json:"alcance"`
	Duration      string `json:"duracao"`
	Components    string `json:"componentes"`
	Cost          string `json:"custo"`
	System        string `json:"sistema"`
	Description   string `json:"descricao"`
	OwnerNickname string `json:"donoVulgo,omitempty"`
	FolderID      *int64 `json:"pastaId,omitempty"`
}

// SheetType distinguishes structured D&D 5e NPC sheets from free-form ones.
type SheetType string

const (
	SheetDnD5e SheetType = "DND5E"
	SheetFree  SheetType = "LIVRE"
)

type NPC struct {
	ID              int64     `json:"id"`
	Name            string    `json:"nome"`
	SheetType       SheetType `json:"tipoFicha"`
	Appearance      string    `json:"aparencia"`
	Personality     string    `json:"personalidade"`
	History         string    `json:"historia"`
	ChallengeRating float64   `json:"nivelDesafio"`
	ArmorClass      int       `json:"classeArmadura"`
	HitPoints       int       `json:"pontosVida"`
	Strength        int       `json:"forca"`
	Dexterity       int       `json:"destreza"`
	Constitution    int       `json:"constituicao"`
	Intelligence    int       `json:"inteligencia"`
	Wisdom          int       `json:"sabedoria"`
	Charisma        int       `json:"carisma"`
	CustomRules     string    `json:"regrasCustomizadas"`
	Equipment       []Item    `json:"equipamentos,omitempty"`
	KnownSpells     []Spell   `json:"magiasConhecidas,omitempty"`
	EquipmentIDs    []int64   `json:"equipamentosIds,omitempty"`
	SpellIDs        []int64   `json:"magiasIds,omitempty"`
	OwnerNickname   string    `json:"donoVulgo,omitempty"`
	FolderID        *int64    `json:"pastaId,omitempty"`
}

// Structured reports whether the NPC carries D&D 5e combat stats.
func (n NPC) Structured() bool { return n.SheetType == SheetDnD5e }

func (f Folder) DisplayName() string   { return f.Name }
func (c Creature) DisplayName() string { return c.Name }
func (i Item) DisplayName() string     { return i.Name }
func (s Spell) DisplayName() string    { return s.Name }
func (n NPC) DisplayName() string      { return n.Name }

func (f Folder) Owner() string   { return f.OwnerNickname }
func (c Creature) Owner() string { return c.CreatorNickname }
func (i Item) Owner() string     { return i.OwnerNickname }
func (s Spell) Owner() string    { return s.OwnerNickname }
func (n NPC) Owner() string      { return n.OwnerNickname }
