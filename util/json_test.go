package util

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	cases := map[string]struct {
		in, want string
	}{
		"no fence":          {`{"a": 1}`, `{"a": 1}`},
		"plain fence":       {"```\n{\"a\": 1}\n```", `{"a": 1}`},
		"json language tag": {"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		"fence with spaces": {"  ```json\n{\"a\": 1}\n```  ", `{"a": 1}`},
		"array body":        {"```json\n[1, 2]\n```", `[1, 2]`},
		"empty":             {"", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripCodeFences(tc.in))
		})
	}
}

func TestSniffMime(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	assert.Equal(t, "image/png", SniffMime(buf.Bytes()))
	assert.Equal(t, "text/plain; charset=utf-8", SniffMime([]byte("hello")))
}
