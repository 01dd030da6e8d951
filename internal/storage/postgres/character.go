package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/character"
)

// CharacterStore persists character records and implements
// character.Resolver, so it can seed encounter participants directly.
type CharacterStore struct {
	db *pgxpool.Pool
}

// NewCharacterStore creates a CharacterStore backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCharacterStore(db *pgxpool.Pool) *CharacterStore {
	return &CharacterStore{db: db}
}

const characterColumns = `
	id, name, level, max_hp, ac, speed,
	strength, dexterity, constitution, intelligence, wisdom, charisma,
	proficiencies, resistances, immunities, vulnerabilities, player`

// Upsert inserts a record or replaces the row with the same id.
//
// Precondition: rec.ID must be non-empty and rec.MaxHP positive.
// Postcondition: A later Resolve for rec.ID returns the stored record.
func (s *CharacterStore) Upsert(ctx context.Context, rec *character.Record) error {
	if rec.ID == "" {
		return errors.Validationf("character id is required")
	}
	if rec.MaxHP < 1 {
		return errors.Validationf("character %q needs a positive max HP", rec.ID)
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO characters (`+characterColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, level = EXCLUDED.level,
			max_hp = EXCLUDED.max_hp, ac = EXCLUDED.ac, speed = EXCLUDED.speed,
			strength = EXCLUDED.strength, dexterity = EXCLUDED.dexterity,
			constitution = EXCLUDED.constitution, intelligence = EXCLUDED.intelligence,
			wisdom = EXCLUDED.wisdom, charisma = EXCLUDED.charisma,
			proficiencies = EXCLUDED.proficiencies,
			resistances = EXCLUDED.resistances,
			immunities = EXCLUDED.immunities,
			vulnerabilities = EXCLUDED.vulnerabilities,
			player = EXCLUDED.player,
			updated_at = NOW()`,
		rec.ID, rec.Name, rec.Level, rec.MaxHP, rec.AC, rec.Speed,
		rec.Abilities.Strength, rec.Abilities.Dexterity, rec.Abilities.Constitution,
		rec.Abilities.Intelligence, rec.Abilities.Wisdom, rec.Abilities.Charisma,
		proficiencyList(rec.Proficiencies),
		rec.Resistances, rec.Immunities, rec.Vulnerabilities, rec.Player,
	)
	if err != nil {
		return fmt.Errorf("upserting character: %w", err)
	}
	return nil
}

// Resolve returns the record whose id matches key, falling back to an exact
// name match.
//
// Postcondition: Returns errors.KindNotFound when no record matches.
func (s *CharacterStore) Resolve(ctx context.Context, key string) (*character.Record, error) {
	rec, err := s.scanOne(ctx, `
		SELECT `+characterColumns+`
		FROM characters WHERE id = $1`, key)
	if err == nil {
		return rec, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}
	return s.scanOne(ctx, `
		SELECT `+characterColumns+`
		FROM characters WHERE name = $1
		ORDER BY id LIMIT 1`, key)
}

// List returns every record ordered by id.
func (s *CharacterStore) List(ctx context.Context) ([]*character.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+characterColumns+`
		FROM characters ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	defer rows.Close()

	recs := make([]*character.Record, 0)
	for rows.Next() {
		rec, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Delete removes the record with the given id.
//
// Postcondition: Returns errors.KindNotFound when no row matched.
func (s *CharacterStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM characters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFoundf("character %q not found", id)
	}
	return nil
}

func (s *CharacterStore) scanOne(ctx context.Context, query, arg string) (*character.Record, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying character: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("querying character: %w", err)
		}
		return nil, errors.NotFoundf("character %q not found", arg)
	}
	return scanCharacter(rows)
}

func scanCharacter(row pgx.Row) (*character.Record, error) {
	var rec character.Record
	var profs []string
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Level, &rec.MaxHP, &rec.AC, &rec.Speed,
		&rec.Abilities.Strength, &rec.Abilities.Dexterity, &rec.Abilities.Constitution,
		&rec.Abilities.Intelligence, &rec.Abilities.Wisdom, &rec.Abilities.Charisma,
		&profs, &rec.Resistances, &rec.Immunities, &rec.Vulnerabilities, &rec.Player,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFoundf("character not found")
		}
		return nil, fmt.Errorf("scanning character row: %w", err)
	}
	if len(profs) > 0 {
		rec.Proficiencies = make(map[string]bool, len(profs))
		for _, p := range profs {
			rec.Proficiencies[p] = true
		}
	}
	return &rec, nil
}

// proficiencyList flattens the proficiency set into a text array for
// storage; only proficient entries are kept.
func proficiencyList(profs map[string]bool) []string {
	if len(profs) == 0 {
		return nil
	}
	out := make([]string, 0, len(profs))
	for name, ok := range profs {
		if ok {
			out = append(out, name)
		}
	}
	return out
}
