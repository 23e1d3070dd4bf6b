// Package propertydb supplies measured ionic-liquid properties used as labels.
package propertydb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ilfeat/internal/domain"
	"ilfeat/internal/port"
)

var (
	_ port.PropertyDB = (*SQL)(nil)
	_ port.PropertyDB = (*File)(nil)
	_ port.PropertyDB = None{}
)

const lookupQuery = `SELECT property, value, temperature_k, pressure_kpa
FROM il_properties
WHERE cation_smiles = $1 AND anion_smiles = $2
ORDER BY property, temperature_k, pressure_kpa`

// SQL reads the il_properties table. SMILES columns hold canonical strings.
type SQL struct {
	db *sql.DB
}

func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

// OpenSQL connects to a PostgreSQL database through the pgx driver.
func OpenSQL(ctx context.Context, dsn string) (*SQL, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open property database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach property database: %w", err)
	}
	return NewSQL(db), nil
}

func (s *SQL) Lookup(ctx context.Context, cation, anion domain.MoleculeIdentity) ([]domain.PropertyValue, error) {
	rows, err := s.db.QueryContext(ctx, lookupQuery, cation.Canonical, anion.Canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var out []domain.PropertyValue
	for rows.Next() {
		var p domain.PropertyValue
		var t, pr sql.NullFloat64
		if err := rows.Scan(&p.Name, &p.Value, &t, &pr); err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		p.TemperatureK, p.PressureKPa = t.Float64, pr.Float64
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read properties: %w", err)
	}
	return out, nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

// None never has labels.
type None struct{}

func (None) Lookup(context.Context, domain.MoleculeIdentity, domain.MoleculeIdentity) ([]domain.PropertyValue, error) {
	return nil, nil
}
