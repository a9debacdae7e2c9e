package decks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValid(t *testing.T) {
	cases := []struct {
		n, total int
		want     bool
	}{
		{1, 2, true},
		{2, 2, true},
		{3, 2, false},
		{0, 2, false},
		{-1, 0, false},
		{1, 0, true},
		{500, 0, true},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.want, Valid(tc.n, tc.total), "Valid(%d, %d)", tc.n, tc.total)
	}
}

func TestValidateDeck(t *testing.T) {
	require.NoError(t, ValidateDeck("talk.pptx", 1024, DefaultMaxDeckBytes))
	require.NoError(t, ValidateDeck("TALK.PPT", 1024, 0))

	err := ValidateDeck("talk.pdf", 1024, DefaultMaxDeckBytes)
	require.True(t, errors.Is(err, ErrInvalidFile))

	err = ValidateDeck("talk.pptx", DefaultMaxDeckBytes+1, DefaultMaxDeckBytes)
	require.True(t, errors.Is(err, ErrInvalidFile))
	require.Contains(t, err.Error(), "50 MB")
}

func TestValidateMaterial(t *testing.T) {
	for _, name := range []string{"notes.md", "brief.DOCX", "paper.pdf", "a.rtf"} {
		require.NoError(t, ValidateMaterial(name), name)
	}
	require.ErrorIs(t, ValidateMaterial("deck.pptx"), ErrInvalidFile)
	require.ErrorIs(t, ValidateMaterial("README"), ErrInvalidFile)
}

func TestScriptRecordBlocked(t *testing.T) {
	require.True(t, ScriptRecord{Text: "[Script content blocked by safety filters]"}.Blocked())
	require.False(t, ScriptRecord{Text: "Welcome to the talk."}.Blocked())
}

func TestParseAudioKind(t *testing.T) {
	kind, ok := ParseAudioKind("Generated")
	require.True(t, ok)
	require.Equal(t, AudioGenerated, kind)

	_, ok = ParseAudioKind("remix")
	require.False(t, ok)
	require.Equal(t, ActionFetchOriginal, AudioAction(AudioOriginal))
}

func TestSlideRefValid(t *testing.T) {
	require.True(t, SlideRef{PresentationID: "p1", Number: 3}.Valid(3))
	require.False(t, SlideRef{PresentationID: "p1", Number: 4}.Valid(3))
	require.True(t, SlideRef{PresentationID: "p1", Number: 40}.Valid(0))
	require.False(t, SlideRef{Number: 1}.Valid(3))
}
