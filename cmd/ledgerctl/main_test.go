package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedMemoryBackend(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
users:
  - id: u1
    firstName: Ana
    email: ana@example.com
    balance: "10.00"
stores:
  - id: s1
    professorId: u1
    name: Ana's
products:
  - id: p1
    storeId: s1
    name: Case
    price: "12.50"
    affiliateCommissionRate: "0.1"
    type: PHYSICAL
`), 0o600))

	var stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--backend", "memory", "seed", "-f", path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, stderr.String(), "seeded")
}

func TestMigrateRequiresPostgres(t *testing.T) {
	chdir(t, t.TempDir())
	cmd := newRootCmd()
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--backend", "memory", "migrate"})
	assert.ErrorContains(t, cmd.Execute(), "postgres")
}
