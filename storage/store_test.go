package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanRef(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"audio/a.mp3", "audio/a.mp3", false},
		{"audio//x/../a.mp3", "audio/a.mp3", false},
		{`covers\b.png`, "covers/b.png", false},
		{"", "", true},
		{"/etc/passwd", "", true},
		{"../secret", "", true},
		{"audio/../../x", "", true},
		{".", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanRef(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRef)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRef(t *testing.T) {
	ref := NewRef(KindAudio, "MP3")
	assert.True(t, strings.HasPrefix(ref, "audio/"))
	assert.True(t, strings.HasSuffix(ref, ".mp3"))
	assert.NotEqual(t, ref, NewRef(KindAudio, ".mp3"))
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStore(root, "/uploads/")
	require.NoError(t, err)

	ref, err := store.Put(ctx, KindAudio, bytes.NewReader([]byte("data")), 4, "audio/mpeg", ".mp3")
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(ref)))
	require.NoError(t, err)
	assert.Equal(t, "data", string(content))
	assert.Equal(t, "/uploads/"+ref, store.URLFor(ref))
	assert.Equal(t, "", store.URLFor(""))

	objects, err := store.List(ctx, "audio/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, ref, objects[0].Key)
	assert.EqualValues(t, 4, objects[0].Size)

	require.NoError(t, store.Delete(ctx, ref))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(ref)))
	assert.True(t, os.IsNotExist(err))

	// 再删一次仍然成功
	assert.NoError(t, store.Delete(ctx, ref))
	assert.ErrorIs(t, store.Delete(ctx, "../outside"), ErrInvalidRef)
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	stats := Summarize([]ObjectInfo{
		{Key: "audio/a.mp3", Size: 100, LastModified: now.Add(-time.Hour)},
		{Key: "audio/b.mp3", Size: 50, LastModified: now},
		{Key: "covers/c.png", Size: 10, LastModified: now.Add(-time.Minute)},
	})
	assert.EqualValues(t, 3, stats.TotalObjects)
	assert.EqualValues(t, 160, stats.TotalSize)
	assert.Equal(t, now, stats.LastModified)
	assert.EqualValues(t, 150, stats.PerKind["audio"])
	assert.EqualValues(t, 10, stats.PerKind["covers"])
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.0 KB", FormatSize(1024))
	assert.Equal(t, "1.5 MB", FormatSize(1536*1024))
}
