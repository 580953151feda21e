package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/modplanner/internal/inventory"
	"github.com/udisondev/modplanner/internal/model"
)

// InventoryRepository хранит моды и ростер одного игрока (ally code).
// Реализует inventory.Store.
type InventoryRepository struct {
	db       *pgxpool.Pool
	allyCode string
}

var _ inventory.Store = (*InventoryRepository)(nil)

// NewInventoryRepository создаёт новый InventoryRepository.
func NewInventoryRepository(db *pgxpool.Pool, allyCode string) *InventoryRepository {
	return &InventoryRepository{db: db, allyCode: allyCode}
}

// Load загружает снимок инвентаря. Если у игрока нет ни модов, ни персонажей,
// возвращает inventory.ErrNotFound.
func (r *InventoryRepository) Load(ctx context.Context) (inventory.Snapshot, error) {
	snap := inventory.Snapshot{AllyCode: r.allyCode}

	mods, err := r.loadMods(ctx)
	if err != nil {
		return snap, err
	}
	chars, err := r.loadCharacters(ctx)
	if err != nil {
		return snap, err
	}
	if len(mods) == 0 && len(chars) == 0 {
		return snap, fmt.Errorf("ally code %s: %w", r.allyCode, inventory.ErrNotFound)
	}

	snap.Pool = mods
	snap.Characters = chars
	slog.Info("loaded inventory",
		"source", "postgres",
		"ally_code", r.allyCode,
		"mods", len(mods),
		"characters", len(chars))
	return snap, nil
}

func (r *InventoryRepository) loadMods(ctx context.Context) ([]model.Mod, error) {
	query := `
		SELECT mod_id, shape, set_tag, dots, level, primary_type, primary_value
		FROM mods
		WHERE ally_code = $1
		ORDER BY mod_id
	`

	rows, err := r.db.Query(ctx, query, r.allyCode)
	if err != nil {
		return nil, fmt.Errorf("querying mods for %s: %w", r.allyCode, err)
	}
	defer rows.Close()

	// Обычная коллекция — несколько сотен модов.
	mods := make([]model.Mod, 0, 256)
	index := make(map[model.ModID]int)

	for rows.Next() {
		var m model.Mod
		var dots, level int16
		err := rows.Scan(&m.ID, &m.Shape, &m.Set, &dots, &level, &m.Primary.Type, &m.Primary.Value)
		if err != nil {
			return nil, fmt.Errorf("scanning mod row: %w", err)
		}
		m.Dots, m.Level = int(dots), int(level)
		index[m.ID] = len(mods)
		mods = append(mods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mod rows: %w", err)
	}

	secQuery := `
		SELECT mod_id, stat_type, value, rolls
		FROM mod_secondaries
		WHERE ally_code = $1
		ORDER BY mod_id, position
	`

	secRows, err := r.db.Query(ctx, secQuery, r.allyCode)
	if err != nil {
		return nil, fmt.Errorf("querying secondaries for %s: %w", r.allyCode, err)
	}
	defer secRows.Close()

	for secRows.Next() {
		var id model.ModID
		var s model.SecondaryStat
		var rolls int16
		if err := secRows.Scan(&id, &s.Type, &s.Value, &rolls); err != nil {
			return nil, fmt.Errorf("scanning secondary row: %w", err)
		}
		s.Rolls = int(rolls)
		i, ok := index[id]
		if !ok {
			continue
		}
		mods[i].Secondaries = append(mods[i].Secondaries, s)
	}
	if err := secRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating secondary rows: %w", err)
	}

	return mods, nil
}

func (r *InventoryRepository) loadCharacters(ctx context.Context) ([]model.CharacterState, error) {
	query := `
		SELECT character_id, minimum_dots, slice_mods, locked, selected, active_target, base_stats
		FROM characters
		WHERE ally_code = $1
		ORDER BY priority
	`

	rows, err := r.db.Query(ctx, query, r.allyCode)
	if err != nil {
		return nil, fmt.Errorf("querying characters for %s: %w", r.allyCode, err)
	}
	defer rows.Close()

	chars := make([]model.CharacterState, 0, 64)
	index := make(map[model.CharacterID]int)

	for rows.Next() {
		var c model.CharacterState
		var minDots int16
		var baseStats []byte // nullable
		err := rows.Scan(&c.ID, &minDots, &c.SliceMods, &c.Locked, &c.Selected, &c.ActiveTarget, &baseStats)
		if err != nil {
			return nil, fmt.Errorf("scanning character row: %w", err)
		}
		c.MinimumDots = int(minDots)
		if baseStats != nil {
			var bs model.BaseStats
			if err := json.Unmarshal(baseStats, &bs); err != nil {
				return nil, fmt.Errorf("decoding base stats of %s: %w", c.ID, err)
			}
			c.BaseStats = &bs
		}
		index[c.ID] = len(chars)
		chars = append(chars, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating character rows: %w", err)
	}

	if err := r.loadTargets(ctx, chars, index); err != nil {
		return nil, err
	}
	if err := r.loadEquipped(ctx, chars, index); err != nil {
		return nil, err
	}
	return chars, nil
}

func (r *InventoryRepository) loadTargets(ctx context.Context, chars []model.CharacterState, index map[model.CharacterID]int) error {
	query := `
		SELECT character_id, is_default, target
		FROM character_targets
		WHERE ally_code = $1
		ORDER BY character_id, is_default, position
	`

	rows, err := r.db.Query(ctx, query, r.allyCode)
	if err != nil {
		return fmt.Errorf("querying targets for %s: %w", r.allyCode, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id model.CharacterID
		var isDefault bool
		var raw []byte
		if err := rows.Scan(&id, &isDefault, &raw); err != nil {
			return fmt.Errorf("scanning target row: %w", err)
		}
		var t model.OptimizationTarget
		if err := json.Unmarshal(raw, &t); err != nil {
			return fmt.Errorf("decoding target of %s: %w", id, err)
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		if isDefault {
			chars[i].DefaultTargets = append(chars[i].DefaultTargets, t)
		} else {
			chars[i].Targets = append(chars[i].Targets, t)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating target rows: %w", err)
	}
	return nil
}

func (r *InventoryRepository) loadEquipped(ctx context.Context, chars []model.CharacterState, index map[model.CharacterID]int) error {
	query := `
		SELECT character_id, mod_id
		FROM equipped_mods
		WHERE ally_code = $1
		ORDER BY character_id, mod_id
	`

	rows, err := r.db.Query(ctx, query, r.allyCode)
	if err != nil {
		return fmt.Errorf("querying equipped mods for %s: %w", r.allyCode, err)
	}
	defer rows.Close()

	for rows.Next() {
		var charID model.CharacterID
		var modID model.ModID
		if err := rows.Scan(&charID, &modID); err != nil {
			return fmt.Errorf("scanning equipped row: %w", err)
		}
		if i, ok := index[charID]; ok {
			chars[i].Equipped = append(chars[i].Equipped, modID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating equipped rows: %w", err)
	}
	return nil
}

// Save заменяет весь инвентарь игрока в одной транзакции.
func (r *InventoryRepository) Save(ctx context.Context, snap inventory.Snapshot) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Каскад удаляет вторичные статы, цели и экипировку.
	if _, err := tx.Exec(ctx, `DELETE FROM characters WHERE ally_code = $1`, r.allyCode); err != nil {
		return fmt.Errorf("deleting characters of %s: %w", r.allyCode, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM mods WHERE ally_code = $1`, r.allyCode); err != nil {
		return fmt.Errorf("deleting mods of %s: %w", r.allyCode, err)
	}

	shapes := make(map[model.ModID]model.Shape, len(snap.Pool))
	modRows := make([][]any, 0, len(snap.Pool))
	var secRows [][]any
	for _, m := range snap.Pool {
		shapes[m.ID] = m.Shape
		modRows = append(modRows, []any{
			r.allyCode, string(m.ID), string(m.Shape), string(m.Set),
			int16(m.Dots), int16(m.Level), string(m.Primary.Type), m.Primary.Value,
		})
		for pos, s := range m.Secondaries {
			secRows = append(secRows, []any{
				r.allyCode, string(m.ID), int16(pos), string(s.Type), s.Value, int16(s.Rolls),
			})
		}
	}

	charRows := make([][]any, 0, len(snap.Characters))
	var targetRows, equipRows [][]any
	for prio, c := range snap.Characters {
		var baseStats any
		if c.BaseStats != nil {
			raw, err := json.Marshal(c.BaseStats)
			if err != nil {
				return fmt.Errorf("encoding base stats of %s: %w", c.ID, err)
			}
			baseStats = raw
		}
		charRows = append(charRows, []any{
			r.allyCode, string(c.ID), int32(prio), int16(c.MinimumDots),
			c.SliceMods, c.Locked, c.Selected, c.ActiveTarget, baseStats,
		})

		for _, list := range []struct {
			isDefault bool
			targets   []model.OptimizationTarget
		}{{false, c.Targets}, {true, c.DefaultTargets}} {
			for pos, t := range list.targets {
				raw, err := json.Marshal(t)
				if err != nil {
					return fmt.Errorf("encoding target %q of %s: %w", t.Name, c.ID, err)
				}
				targetRows = append(targetRows, []any{r.allyCode, string(c.ID), list.isDefault, int32(pos), raw})
			}
		}

		for _, id := range c.Equipped {
			shape, ok := shapes[id]
			if !ok {
				return fmt.Errorf("%s wears unknown mod %s", c.ID, id)
			}
			equipRows = append(equipRows, []any{r.allyCode, string(id), string(c.ID), string(shape)})
		}
	}

	copies := []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{"mods", []string{"ally_code", "mod_id", "shape", "set_tag", "dots", "level", "primary_type", "primary_value"}, modRows},
		{"mod_secondaries", []string{"ally_code", "mod_id", "position", "stat_type", "value", "rolls"}, secRows},
		{"characters", []string{"ally_code", "character_id", "priority", "minimum_dots", "slice_mods", "locked", "selected", "active_target", "base_stats"}, charRows},
		{"character_targets", []string{"ally_code", "character_id", "is_default", "position", "target"}, targetRows},
		{"equipped_mods", []string{"ally_code", "mod_id", "character_id", "slot"}, equipRows},
	}
	for _, c := range copies {
		if len(c.rows) == 0 {
			continue
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{c.table}, c.columns, pgx.CopyFromRows(c.rows)); err != nil {
			return fmt.Errorf("inserting %s for %s: %w", c.table, r.allyCode, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	slog.Debug("saved inventory",
		"ally_code", r.allyCode,
		"mods", len(snap.Pool),
		"characters", len(snap.Characters))
	return nil
}
