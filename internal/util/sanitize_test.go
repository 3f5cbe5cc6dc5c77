package util

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	t.Run("collapses whitespace and line breaks", func(t *testing.T) {
		require.Equal(t, "moved to archive by mistake", SanitizeText("  moved to\narchive\t by  mistake ", 0))
	})

	t.Run("strips control and invisible characters", func(t *testing.T) {
		require.Equal(t, "Test", SanitizeText("Te\u200Bs\x00t\uFEFF", 0))
	})

	t.Run("truncates by runes", func(t *testing.T) {
		actual := SanitizeText("ÄÖÜäöü", 4)
		require.Equal(t, "ÄÖÜä", actual)
		require.True(t, utf8.ValidString(actual))
	})

	t.Run("empty stays empty", func(t *testing.T) {
		require.Equal(t, "", SanitizeText(" \u200D ", 10))
	})
}

func TestCSVCell(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"=SUM(A1:A2)": "'=SUM(A1:A2)",
		"+49 30 1234": "'+49 30 1234",
		"-1":          "'-1",
		"@cmd":        "'@cmd",
		"Jane Doe":    "Jane Doe",
		"":            "",
	}

	for input, expected := range cases {
		require.Equal(t, expected, CSVCell(input), input)
	}
}
