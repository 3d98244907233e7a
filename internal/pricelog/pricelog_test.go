package pricelog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shell-tracker/internal/types"
)

func TestOpenWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 2, 3, 4, 5, 6, 0, time.Local)
	l, err := Open(dir, start)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "price_log_20240203_040506.csv"), l.Path())
	require.NoError(t, l.Append(types.PriceSample{Time: start, Price: decimal.RequireFromString("1.2345")}))
	require.NoError(t, l.Close())

	b, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Equal(t, "timestamp,price\n2024-02-03T04:05:06,1.2345\n", string(b))
}

func TestAppendAfterFailureIsDropped(t *testing.T) {
	l, err := Open(t.TempDir(), time.Now())
	require.NoError(t, err)

	// closing the file underneath makes the next flush fail
	require.NoError(t, l.f.Close())
	err = l.Append(types.PriceSample{Time: time.Now(), Price: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.True(t, l.Retired())
	assert.True(t, strings.Contains(err.Error(), "retired"))

	assert.NoError(t, l.Append(types.PriceSample{Time: time.Now(), Price: decimal.NewFromInt(2)}))
	assert.NoError(t, l.Close())
}
