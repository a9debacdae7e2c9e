package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTemplates(t *testing.T) {
	tmpl, err := ParseTemplates()
	require.NoError(t, err)
	for _, name := range []string{"base.html", "index.html", "viewer.html", "controls.html", "upload_failed.html"} {
		require.NotNil(t, tmpl.Lookup(name), name)
	}

	var buf bytes.Buffer
	err = tmpl.ExecuteTemplate(&buf, "index.html", map[string]any{
		"Lang":      "vi",
		"Token":     "tok",
		"MaxDeckMB": int64(50),
	})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "Tải lên bài trình chiếu")
	require.Contains(t, buf.String(), `id="progress-tok"`)
	require.Contains(t, buf.String(), `data-channel="tok"`)
}

func TestStaticFiles(t *testing.T) {
	f, err := StaticFiles().Open("app.js")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestHelpers(t *testing.T) {
	require.Equal(t, "512 B", humanBytes(512))
	require.Equal(t, "1.5 KB", humanBytes(1536))
	require.Equal(t, "50.0 MB", humanBytes(50<<20))
	require.Equal(t, "abcdef12", shortID("abcdef1234"))
	require.Equal(t, "", formatTime(time.Time{}))
	require.Equal(t, "0:02", clock(2089*time.Millisecond))
	require.Equal(t, "1:05", clock(65*time.Second))
}
