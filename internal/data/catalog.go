package data

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/modplanner/internal/model"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// SetDef describes one mod set: how many mods complete it and what each
// completion grants.
type SetDef struct {
	Tag       model.SetTag `yaml:"tag"`
	Threshold int          `yaml:"threshold"`
	Small     model.Stat   `yaml:"small_bonus"`
	Max       model.Stat   `yaml:"max_bonus"`
}

// Catalog is the static game data the planner consumes: set thresholds,
// rarity progression tables and weight normalization.
type Catalog struct {
	sets          [model.NumSets]SetDef
	restrictions  map[model.Shape][]model.StatType
	primaryMax    map[int]map[model.StatType]float64
	secondaryRoll map[int]map[model.StatType]float64
	sliceMult     map[model.StatType]float64
	statWeights   model.Vector
	baseStats     model.BaseStats
}

type catalogFile struct {
	Sets                     []SetDef                           `yaml:"sets"`
	Restrictions             map[model.Shape][]model.StatType   `yaml:"restrictions"`
	PrimaryMax               map[int]map[model.StatType]float64 `yaml:"primary_max"`
	SecondaryRoll            map[int]map[model.StatType]float64 `yaml:"secondary_roll"`
	SliceSecondaryMultiplier map[model.StatType]float64         `yaml:"slice_secondary_multiplier"`
	StatWeights              model.Vector                       `yaml:"stat_weights"`
	DefaultBaseStats         model.BaseStats                    `yaml:"default_base_stats"`
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := &Catalog{
		restrictions:  f.Restrictions,
		primaryMax:    f.PrimaryMax,
		secondaryRoll: f.SecondaryRoll,
		sliceMult:     f.SliceSecondaryMultiplier,
		statWeights:   f.StatWeights,
		baseStats:     f.DefaultBaseStats,
	}

	seen := make(map[model.SetTag]bool, len(f.Sets))
	for _, def := range f.Sets {
		idx, ok := def.Tag.Index()
		if !ok {
			return nil, fmt.Errorf("catalog: %w: %q", model.ErrUnknownSet, def.Tag)
		}
		if seen[def.Tag] {
			return nil, fmt.Errorf("catalog: set %q defined twice", def.Tag)
		}
		if def.Threshold < 1 || def.Threshold > model.NumShapes {
			return nil, fmt.Errorf("catalog: set %q threshold %d out of range", def.Tag, def.Threshold)
		}
		seen[def.Tag] = true
		c.sets[idx] = def
	}
	for _, tag := range model.AllSets {
		if !seen[tag] {
			return nil, fmt.Errorf("catalog: set %q missing", tag)
		}
	}

	for shape, opts := range c.restrictions {
		if !shape.IsSpecial() {
			return nil, fmt.Errorf("catalog: %w: %s", model.ErrNotSpecial, shape)
		}
		for _, s := range opts {
			if !s.Known() {
				return nil, fmt.Errorf("catalog: restriction for %s: %w: %q", shape, model.ErrUnknownStat, s)
			}
		}
	}
	for dots := range c.primaryMax {
		if dots < model.MinDots || dots > model.MaxDots {
			return nil, fmt.Errorf("catalog: primary_max has invalid rarity %d", dots)
		}
	}
	for dots, rolls := range c.secondaryRoll {
		if dots < model.MinDots || dots > model.MaxDots {
			return nil, fmt.Errorf("catalog: secondary_roll has invalid rarity %d", dots)
		}
		for stat, v := range rolls {
			if v <= 0 {
				return nil, fmt.Errorf("catalog: secondary_roll %d-dot %q must be positive", dots, stat)
			}
		}
	}
	for d, w := range c.statWeights {
		if w <= 0 {
			return nil, fmt.Errorf("catalog: stat weight for %s must be positive", model.Dimension(d))
		}
	}

	return c, nil
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded catalog", "source", "embedded", "sets", model.NumSets, "rarities", len(c.primaryMax))
	return c, nil
}

// LoadCatalog reads a catalog file. An empty path loads the embedded catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	c, err := ParseCatalog(raw)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	slog.Info("loaded catalog", "source", path, "sets", model.NumSets, "rarities", len(c.primaryMax))
	return c, nil
}

// Set returns the definition of a set.
func (c *Catalog) Set(tag model.SetTag) (SetDef, bool) {
	idx, ok := tag.Index()
	if !ok {
		return SetDef{}, false
	}
	return c.sets[idx], true
}

// SetAt returns the set at the given AllSets index.
func (c *Catalog) SetAt(idx int) SetDef {
	return c.sets[idx]
}

// RestrictionOptions returns the restriction values offered per special shape.
func (c *Catalog) RestrictionOptions() map[model.Shape][]model.StatType {
	return c.restrictions
}

// PrimaryMax returns the level 15 primary value for a rarity and stat.
func (c *Catalog) PrimaryMax(dots int, stat model.StatType) (float64, bool) {
	v, ok := c.primaryMax[dots][stat]
	return v, ok
}

// SecondaryRoll returns the value one roll adds to a secondary of a rarity.
// Stats without an entry gain nothing from rolls.
func (c *Catalog) SecondaryRoll(dots int, stat model.StatType) (float64, bool) {
	v, ok := c.secondaryRoll[dots][stat]
	return v, ok
}

// SliceMultiplier returns the 6E secondary multiplier for a stat; 1 when unlisted.
func (c *Catalog) SliceMultiplier(stat model.StatType) float64 {
	if m, ok := c.sliceMult[stat]; ok {
		return m
	}
	return 1
}

// DefaultBaseStats returns the base stats used when a character has none.
func (c *Catalog) DefaultBaseStats() model.BaseStats {
	return c.baseStats
}

// StatWeight returns how much of a dimension equals one basic-form point.
func (c *Catalog) StatWeight(d model.Dimension) float64 {
	return c.statWeights[d]
}
