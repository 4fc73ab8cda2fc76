package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hkpdata/listings-crawler/internal/listing"
)

func TestFSSinkWritesAllFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink := NewFSSink(filepath.Join(dir, "out"), nil)
	sink.now = func() time.Time {
		return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	}

	records := []listing.Record{
		{
			ID:     "abc123",
			Source: "centanet",
			URL:    "https://hk.centanet.com/findproperty/detail/x_1",
			Title:  "逸瓏灣 3座",
			Price:  listing.Ptr(24800000.0),
		},
	}
	failed := []listing.FailedURL{
		{URL: "https://hk.centanet.com/findproperty/detail/x_2", Reason: "no usable title"},
	}

	m, err := sink.Write(context.Background(), records, failed)
	require.NoError(t, err)
	require.Equal(t, 1, m.Records)
	require.Equal(t, 1, m.Failed)
	require.Contains(t, m.JSONPath, "properties_20240301_093000.json")
	require.Contains(t, m.CSVPath, "properties_20240301_093000.csv")
	require.Contains(t, m.FailedPath, "failed_urls_20240301_093000.txt")

	data, err := os.ReadFile(m.JSONPath)
	require.NoError(t, err)
	var decoded []listing.Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	require.Equal(t, "逸瓏灣 3座", decoded[0].Title)

	f, err := os.Open(m.CSVPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck // test cleanup
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, listing.CSVHeader(), rows[0])
	require.Equal(t, "24800000", rows[1][4])

	failedData, err := os.ReadFile(m.FailedPath)
	require.NoError(t, err)
	require.Equal(t, "https://hk.centanet.com/findproperty/detail/x_2\tno usable title\n", string(failedData))
}

func TestFSSinkEmptyRunStillWritesRecordFiles(t *testing.T) {
	t.Parallel()

	sink := NewFSSink(t.TempDir(), nil)
	m, err := sink.Write(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Empty(t, m.FailedPath)

	data, err := os.ReadFile(m.JSONPath)
	require.NoError(t, err)
	require.Equal(t, "[]", strings.TrimSpace(string(data)))

	_, err = os.Stat(m.CSVPath)
	require.NoError(t, err)
}

func TestFSSinkCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFSSink(t.TempDir(), nil).Write(ctx, nil, nil)
	require.Error(t, err)
}
