package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homefix/internal/modules/catalog"
	"homefix/internal/store/memory"
	"homefix/internal/types"
)

func TestLoadBundledSeed(t *testing.T) {
	seed, err := catalog.LoadSeed(filepath.Join("..", "..", "..", "configs", "seed.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, seed.Services)
	require.NotEmpty(t, seed.Technicians)

	store := memory.New()
	require.NoError(t, seed.Apply(context.Background(), store.Catalog(), "NPR"))

	dir := catalog.NewDirectory(store.Catalog())
	services, err := dir.ListServices(context.Background())
	require.NoError(t, err)
	assert.Len(t, services, len(seed.Services))
	for _, svc := range services {
		assert.NotEmpty(t, svc.ID)
		assert.Equal(t, "NPR", svc.BasePrice.Currency)
	}

	techs, err := dir.ListTechnicians(context.Background())
	require.NoError(t, err)
	require.Len(t, techs, len(seed.Technicians))
	for i, tech := range techs {
		assert.Equal(t, seed.Technicians[i].Name, tech.Name, "directory keeps file order")
	}
}

func TestSeedKeepsExplicitIDs(t *testing.T) {
	path := writeSeed(t, `
services:
  - id: svc-1
    name: Drain cleaning
    category: plumbing
    base_price: 900
    currency: USD
technicians:
  - id: tech-1
    name: Ana
    skills: Plumbing
`)
	seed, err := catalog.LoadSeed(path)
	require.NoError(t, err)

	store := memory.New()
	require.NoError(t, seed.Apply(context.Background(), store.Catalog(), "NPR"))

	dir := catalog.NewDirectory(store.Catalog())
	svc, err := dir.GetService(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.Equal(t, types.Money{Amount: 900, Currency: "USD"}, svc.BasePrice)

	tech, err := dir.GetTechnician(context.Background(), "tech-1")
	require.NoError(t, err)
	assert.True(t, tech.HasSkill("plumbing"))
	assert.False(t, tech.HasSkill(" "))
}

func TestSeedRejectsNamelessEntries(t *testing.T) {
	seed, err := catalog.LoadSeed(writeSeed(t, "services:\n  - category: plumbing\n"))
	require.NoError(t, err)
	err = seed.Apply(context.Background(), memory.New().Catalog(), "NPR")
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
}

func TestLoadSeedErrors(t *testing.T) {
	_, err := catalog.LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = catalog.LoadSeed(writeSeed(t, "services: [unterminated"))
	assert.Error(t, err)
}

func TestDirectoryNotFound(t *testing.T) {
	dir := catalog.NewDirectory(memory.New().Catalog())
	_, err := dir.GetService(context.Background(), "nope")
	assert.True(t, errors.Is(err, types.ErrNotFound))
	_, err = dir.GetTechnician(context.Background(), "nope")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
