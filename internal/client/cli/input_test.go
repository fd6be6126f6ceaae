package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)
}

func TestGetMultiline(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"double enter", "a\nb\n\n\n", "a\nb"},
		{"eof", `{"sku":` + "\n" + `"A-1"}`, "{\"sku\":\n\"A-1\"}"},
		{"empty", "\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := GetMultiline(rdr(tt.in), "Payload", &out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfirm(t *testing.T) {
	for in, want := range map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"n\n":   false,
		"\n":    false,
		"":      false,
	} {
		var out bytes.Buffer
		got, err := Confirm(rdr(in), "Sure?", &out)
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", in)
	}
}
