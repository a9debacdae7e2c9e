package i18n

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetFallsBack(t *testing.T) {
	require.Equal(t, "Trang sau", Get(LangVI, "next"))
	require.Equal(t, "Next", Get("fr", "next"))
	require.Equal(t, "missing_key", Get(LangVI, "missing_key"))
}

func TestTablesShareKeys(t *testing.T) {
	for key := range translations[DefaultLanguage] {
		_, ok := translations[LangVI][key]
		require.True(t, ok, "vi is missing %q", key)
	}
	for _, lang := range Languages {
		require.True(t, Supported(lang))
		require.NotEmpty(t, LanguageNames[lang])
	}
}
