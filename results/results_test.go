package results

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave_CSVAndJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	store := NewStore(dir)

	seen := time.Date(2014, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := [][]interface{}{
		{"1.1.1.1", 5, 20, seen, seen, 2},
	}
	require.NoError(t, store.Save(MostTables, DeploymentHeaders, rows))

	csvData, err := os.ReadFile(filepath.Join(dir, "results-most-tables.csv"))
	require.NoError(t, err)
	assert.Equal(t,
		"ip\tnum_servers\tnum_tables\tlast_seen\tfirst_seen\thits\n"+
			"1.1.1.1\t5\t20\t2014-03-01 00:00:00\t2014-03-01 00:00:00\t2\n",
		string(csvData))

	var decoded []map[string]interface{}
	require.NoError(t, store.ReadJSON(MostTables, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, float64(1393632000000), decoded[0]["last_seen"])
	assert.Equal(t, float64(20), decoded[0]["num_tables"])
	assert.Equal(t, "1.1.1.1", decoded[0]["ip"])
}

func TestSaveJSON_DropsExtraCells(t *testing.T) {
	store := NewStore(t.TempDir())
	rows := [][]interface{}{{"2014-03-03 - 2014-03-09", 3, 0, 3, 4}}
	require.NoError(t, store.SaveJSON(TableName("minor", "week"), TableHeaders, rows))

	var decoded []map[string]interface{}
	require.NoError(t, store.ReadJSON("minor-week", &decoded))
	assert.Equal(t, []map[string]interface{}{
		{"range": "2014-03-03 - 2014-03-09", "uniques": float64(3), "existing": float64(0), "new": float64(3)},
	}, decoded)
}

func TestSaveJSON_EmptyIsArray(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.SaveJSON(GitHubStars, PeriodHeaders, nil))

	data, err := os.ReadFile(store.Path(GitHubStars, "json"))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestReadJSON_Missing(t *testing.T) {
	var v []map[string]interface{}
	assert.Error(t, NewStore(t.TempDir()).ReadJSON(AllStars, &v))
}

func TestEpochMillis(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	assert.Equal(t, int64(1393624800000), EpochMillis(time.Date(2014, 3, 1, 0, 0, 0, 0, loc)))
}
