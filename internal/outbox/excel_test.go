package outbox

import (
	"archive/zip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stroemhansen/yolocam/internal/decision"
	"github.com/stroemhansen/yolocam/internal/fsutil"
	"github.com/stroemhansen/yolocam/internal/reading"
)

func TestBucketKeyDailyWeeklyMonthly(t *testing.T) {
	ts := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	require.Equal(t, "2026-07-31", BucketKey(ts, BucketDaily))
	require.Equal(t, "2026-07", BucketKey(ts, BucketMonthly))
	require.Equal(t, "2026-W31", BucketKey(ts, BucketWeekly))
}

func TestAppendRowCreatesHeaderThenAppends(t *testing.T) {
	dir := t.TempDir()
	w := NewExcelWriter(fsutil.OSFileSystem{}, dir, BucketDaily)

	ts := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	d1 := decision.New("cam1", "AB123", reading.Rectangle{}, 0.9, 0.8, nil, nil, nil, "")
	d1.Timestamp = ts
	d2 := decision.New("cam1", "CD456", reading.Rectangle{}, 0.95, 0.85, nil, nil, nil, "")
	d2.Timestamp = ts.Add(time.Minute)

	require.NoError(t, w.AppendRow(d1))
	require.NoError(t, w.AppendRow(d2))

	data, err := fsutil.OSFileSystem{}.ReadFile(dir + "/2026-07-31.csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "timestamp")
	require.Contains(t, lines[1], "AB123")
	require.Contains(t, lines[2], "CD456")
}

func TestRolloverConvertsStaleBucketsOnly(t *testing.T) {
	dir := t.TempDir()
	w := NewExcelWriter(fsutil.OSFileSystem{}, dir, BucketDaily)

	old := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)

	dOld := decision.New("cam1", "OLD111", reading.Rectangle{}, 0.9, 0.8, nil, nil, nil, "")
	dOld.Timestamp = old
	dNow := decision.New("cam1", "NEW222", reading.Rectangle{}, 0.9, 0.8, nil, nil, nil, "")
	dNow.Timestamp = now

	require.NoError(t, w.AppendRow(dOld))
	require.NoError(t, w.AppendRow(dNow))

	var rolledOver []string
	w.OnRollover = func(path string) { rolledOver = append(rolledOver, path) }

	require.NoError(t, w.Rollover(now))

	require.Len(t, rolledOver, 1)
	require.Contains(t, rolledOver[0], "2026-07-29.xlsx")

	_, err := fsutil.OSFileSystem{}.ReadFile(dir + "/2026-07-29.csv")
	require.Error(t, err, "stale CSV must be removed after conversion")

	_, err = fsutil.OSFileSystem{}.ReadFile(dir + "/2026-07-31.csv")
	require.NoError(t, err, "current bucket must not be rolled over")

	xlsx := rolledOver[0]
	zr, err := zip.OpenReader(xlsx)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	require.Contains(t, names, "xl/worksheets/sheet1.xml")
	require.Contains(t, names, "[Content_Types].xml")
}

func TestRolloverIsIdempotentOnIdenticalInput(t *testing.T) {
	csvData := []byte("timestamp,plate\n2026-07-29T09:00:00Z,OLD111\n")
	out1, err := csvToXLSX(csvData)
	require.NoError(t, err)
	out2, err := csvToXLSX(csvData)
	require.NoError(t, err)
	require.Equal(t, out1, out2, "identical CSV input must produce byte-identical workbooks")
}
