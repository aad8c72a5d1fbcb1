package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yoruanime/yoru/internal/database"
)

func TestSkipsSetup(t *testing.T) {
	assert.True(t, skipsSetup(versionCmd))
	assert.True(t, skipsSetup(configInitCmd))
	assert.True(t, skipsSetup(configPathCmd))
	assert.False(t, skipsSetup(configShowCmd))
	assert.False(t, skipsSetup(watchCmd))
	assert.False(t, skipsSetup(authStatusCmd))
}

func TestFormatHistoryRow(t *testing.T) {
	row := formatHistoryRow(database.History{
		AnimeID:         21,
		Title:           "Naruto",
		Episode:         5,
		Dub:             true,
		ProgressPercent: 100,
		Completed:       true,
		Quality:         "1080p",
		SourceOrigin:    "mirrorA",
		WatchedAt:       time.Now().Add(-2 * time.Hour),
	})

	assert.Contains(t, row, "✓ Naruto")
	assert.Contains(t, row, "ep 5")
	assert.Contains(t, row, "100%")
	assert.Contains(t, row, "dub")
	assert.Contains(t, row, "2 hours ago")
	assert.Contains(t, row, "[1080p mirrorA]")
	assert.Contains(t, row, "(id 21)")
}

func TestProxyBase(t *testing.T) {
	p := proxyBase("http://127.0.0.1:4001")
	assert.Equal(t, "http://127.0.0.1:4001/proxy?url=http%3A%2F%2Fx%2Fa.m3u8&ref=http%3A%2F%2Fx", p.ProxyURL("http://x/a.m3u8", "http://x"))
}
