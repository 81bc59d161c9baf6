package invoice

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartstore/engine/internal/session"
)

func TestGenerator_RenderReceipt(t *testing.T) {
	dir := t.TempDir()
	gen, err := NewGenerator(dir)
	require.NoError(t, err)

	items := []session.CartLine{
		{ProductID: "prod-1", Name: "Cola 33cl", UnitPrice: 2.50, Quantity: 2},
		{ProductID: "prod-2", Name: "Chips", UnitPrice: 1.80, Quantity: 1},
	}

	path, err := gen.RenderReceipt("tx-abc", items, 6.80, "Alice Martin")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(filepath.Base(path), "invoice_tx-abc_"))
	assert.True(t, strings.HasSuffix(path, ".pdf"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestGenerator_CreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "invoices")

	_, err := NewGenerator(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGenerator_LongProductNameTruncated(t *testing.T) {
	gen, err := NewGenerator(t.TempDir())
	require.NoError(t, err)

	items := []session.CartLine{
		{ProductID: "prod-1", Name: strings.Repeat("Very Long Product Name ", 5), UnitPrice: 9.99, Quantity: 1},
	}

	path, err := gen.RenderReceipt("tx-long", items, 9.99, "Bob Stone")
	require.NoError(t, err)
	assert.FileExists(t, path)
}
