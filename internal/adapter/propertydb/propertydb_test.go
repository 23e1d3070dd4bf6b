package propertydb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilfeat/internal/adapter/chem"
	"ilfeat/internal/domain"
)

func ions(t *testing.T, cation, anion string) (domain.MoleculeIdentity, domain.MoleculeIdentity) {
	t.Helper()
	c, err := chem.Canonicalize(cation)
	require.NoError(t, err)
	a, err := chem.Canonicalize(anion)
	require.NoError(t, err)
	return c, a
}

func TestSQL_Lookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cation, anion := ions(t, "CCn1cc[n+](C)c1", "F[B-](F)(F)F")
	mock.ExpectQuery("SELECT property, value, temperature_k, pressure_kpa FROM il_properties").
		WithArgs(cation.Canonical, anion.Canonical).
		WillReturnRows(sqlmock.NewRows([]string{"property", "value", "temperature_k", "pressure_kpa"}).
			AddRow("density", 1.28, 298.15, 101.325).
			AddRow("viscosity", 37.7, nil, nil))

	props, err := NewSQL(db).Lookup(context.Background(), cation, anion)
	require.NoError(t, err)
	assert.Equal(t, []domain.PropertyValue{
		{Name: "density", Value: 1.28, TemperatureK: 298.15, PressureKPa: 101.325},
		{Name: "viscosity", Value: 37.7},
	}, props)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_LookupEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cation, anion := ions(t, "CC[N+](C)(C)C", "[Cl-]")
	mock.ExpectQuery("SELECT").WithArgs(cation.Canonical, anion.Canonical).
		WillReturnRows(sqlmock.NewRows([]string{"property", "value", "temperature_k", "pressure_kpa"}))

	props, err := NewSQL(db).Lookup(context.Background(), cation, anion)
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestSQL_LookupError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))
	cation, anion := ions(t, "CC[N+](C)(C)C", "[Cl-]")
	_, err = NewSQL(db).Lookup(context.Background(), cation, anion)
	assert.ErrorContains(t, err, "connection reset")
}

const recordsYAML = `records:
  - cation: "C[n+]1ccn(CC)c1"
    anion: "[B-](F)(F)(F)F"
    properties:
      - name: density
        value: 1.28
        temperature_k: 298.15
        pressure_kpa: 101.325
      - name: density
        value: 1.25
        temperature_k: 323.15
        pressure_kpa: 101.325
  - cation: "CC[N+](C)(C)C"
    anion: "[Cl-]"
    properties: []
`

func TestFile_Lookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "props.yaml")
	require.NoError(t, os.WriteFile(path, []byte(recordsYAML), 0o644))

	f, err := LoadFile(path)
	require.NoError(t, err)

	cation, anion := ions(t, "CCn1cc[n+](C)c1", "F[B-](F)(F)F")
	props, err := f.Lookup(context.Background(), cation, anion)
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.Equal(t, 1.28, props[0].Value)
	assert.Equal(t, 323.15, props[1].TemperatureK)

	cation, anion = ions(t, "CC[N+](C)(C)C", "[Cl-]")
	props, err = f.Lookup(context.Background(), cation, anion)
	require.NoError(t, err)
	assert.Nil(t, props)
}

func TestParseFile_Errors(t *testing.T) {
	_, err := ParseFile([]byte("records: [oops"))
	assert.Error(t, err)

	_, err = ParseFile([]byte("records:\n  - cation: \"C1CC\"\n    anion: \"[Cl-]\"\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidStructure)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNone(t *testing.T) {
	props, err := None{}.Lookup(context.Background(), domain.MoleculeIdentity{}, domain.MoleculeIdentity{})
	assert.NoError(t, err)
	assert.Nil(t, props)
}
