package assets

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"slidevoice/internal/decks"
)

func newStore() *Store {
	return NewStore(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStoreLifecycle(t *testing.T) {
	store := newStore()

	asset, err := store.Create([]byte("not really mp3"), "", decks.AudioGenerated, 2)
	require.NoError(t, err)
	require.Equal(t, "audio/mpeg", asset.ContentType)
	require.Equal(t, "/audio/"+asset.ID.String(), asset.URL())
	require.Zero(t, asset.Duration)
	require.Equal(t, 1, store.Live())

	got, data, ok := store.Open(asset.ID)
	require.True(t, ok)
	require.Equal(t, asset, got)
	require.Equal(t, "not really mp3", string(data))

	require.True(t, store.Revoke(asset.ID))
	require.False(t, store.Revoke(asset.ID))
	_, _, ok = store.Open(asset.ID)
	require.False(t, ok)
	require.Zero(t, store.Live())
}

func TestStoreRejectsEmptyAudio(t *testing.T) {
	store := newStore()
	_, err := store.Create(nil, "audio/mpeg", decks.AudioOriginal, 1)
	require.ErrorIs(t, err, ErrEmptyAudio)
	require.Zero(t, store.Live())
}

func TestMP3DurationIgnoresOtherFormats(t *testing.T) {
	require.Zero(t, mp3Duration([]byte("RIFF...."), "audio/wav"))
	require.Zero(t, mp3Duration([]byte{0x00}, "not a media type;;"))
}

// silentMP3 builds a stream of frames MPEG-1 Layer III, 128 kbit/s,
// 44.1 kHz mono with zeroed side info and main data.
func silentMP3(frames int) []byte {
	const frameSize = 144 * 128000 / 44100
	frame := make([]byte, frameSize)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0xC0})
	return bytes.Repeat(frame, frames)
}

func TestMP3DurationDecodesFrames(t *testing.T) {
	// 40 frames of 1152 samples at 44.1 kHz
	want := time.Duration(40*1152) * time.Second / 44100

	require.Equal(t, want, mp3Duration(silentMP3(40), "audio/mpeg"))
	require.Equal(t, want, mp3Duration(silentMP3(40), "audio/mp3; charset=binary"))
	require.Zero(t, mp3Duration([]byte("not an mp3 stream"), "audio/mpeg"))

	// tag header claiming far more bytes than the payload holds
	require.Zero(t, mp3Duration([]byte("ID3\x04\x00\x00\x7f\x7f\x7f\x7f"), "audio/mpeg"))

	tagged := append([]byte("ID3\x04\x00\x00\x00\x00\x00\x02ab"), silentMP3(40)...)
	require.Equal(t, want, mp3Duration(tagged, "audio/mpeg"))
}

func TestCreateRecordsDuration(t *testing.T) {
	var logs bytes.Buffer
	store := NewStore(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))

	asset, err := store.Create(silentMP3(80), "audio/mpeg", decks.AudioOriginal, 1)
	require.NoError(t, err)
	require.Greater(t, asset.Duration, 2*time.Second)
	require.Less(t, asset.Duration, 3*time.Second)

	line := logs.String()
	require.True(t, strings.Contains(line, "duration=2.0"), line)
}
