package conf

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshal(t *testing.T) {
	var p Pricing
	require.NoError(t, json.Unmarshal([]byte(`{"lock_expiry":"5s","catalog_refresh_interval":2.5,"credit_costs":{"job_posts":10}}`), &p))
	assert.Equal(t, 5*time.Second, p.LockExpiry.AsDuration())
	assert.Equal(t, 2500*time.Millisecond, p.CatalogRefreshInterval.AsDuration())
	assert.EqualValues(t, 10, p.CreditCosts["job_posts"])

	var d Duration
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestDurationNil(t *testing.T) {
	var d *Duration
	assert.Zero(t, d.AsDuration())
}

func TestLogDefaults(t *testing.T) {
	var l *Log
	assert.Equal(t, "info", l.GetLevel())
	assert.Equal(t, "json", l.GetFormat())
	assert.Equal(t, "stdout", l.GetOutput())
	assert.Equal(t, "logs/app.log", l.GetFilePath("logs/app.log"))
	assert.True(t, l.GetEnableConsole())

	var b Bootstrap
	require.NoError(t, json.Unmarshal([]byte(`{"log":{"level":"debug","output":"file","disable_console":true},"metadata":{"region":"in"}}`), &b))
	assert.Equal(t, "debug", b.Log.GetLevel())
	assert.Equal(t, "file", b.Log.GetOutput())
	assert.Equal(t, "json", b.Log.GetFormat())
	assert.False(t, b.Log.GetEnableConsole())
	assert.Equal(t, map[string]string{"region": "in"}, b.GetMetadata())
	assert.Nil(t, (*Bootstrap)(nil).GetMetadata())
}
