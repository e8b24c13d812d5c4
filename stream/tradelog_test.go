package stream

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeLoggerRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	l, err := NewTradeLogger(path)
	require.NoError(t, err)

	ts := time.Date(2025, 6, 2, 14, 45, 0, 0, time.UTC)
	require.NoError(t, l.Entry(ts, "LONG", 21502, 21498, 21532))
	require.NoError(t, l.StopUpdate(ts.Add(time.Minute), 21504))
	require.NoError(t, l.Exit(ts.Add(2*time.Minute), "LONG", 21532, 29, "TARGET"))
	require.NoError(t, l.Flatten(ts.Add(3*time.Minute), "Daily loss limit"))
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 5)
	assert.Equal(t, []string{"timestamp", "event_type", "direction", "price", "stop", "target", "pnl_points", "reason"}, rows[0])

	assert.Equal(t, "ENTRY", rows[1][1])
	assert.Equal(t, "LONG", rows[1][2])
	assert.Equal(t, "21502.00", rows[1][3])
	assert.Equal(t, "21498.00", rows[1][4])
	assert.Equal(t, "21532.00", rows[1][5])

	assert.Equal(t, "STOP_UPDATE", rows[2][1])
	assert.Equal(t, "21504.00", rows[2][4])

	assert.Equal(t, "EXIT", rows[3][1])
	assert.Equal(t, "29.00", rows[3][6])
	assert.Equal(t, "TARGET", rows[3][7])

	assert.Equal(t, "FLATTEN", rows[4][1])
	assert.Equal(t, "Daily loss limit", rows[4][7])
}
