package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWithWriters_FansOut(t *testing.T) {
	prev := L
	t.Cleanup(func() { L = prev; SetLevel("info") })

	var stderr, file bytes.Buffer
	SetLevel("info")
	SetupWithWriters(&stderr, &file)

	L.Info("hello", "turns", 2)
	L.Debug("hidden")

	require.Contains(t, stderr.String(), "msg=hello")
	require.Contains(t, file.String(), `"msg":"hello"`)
	require.False(t, strings.Contains(stderr.String(), "hidden"))
}

func TestSetLevel_Debug(t *testing.T) {
	prev := L
	t.Cleanup(func() { L = prev; SetLevel("info") })

	var stderr, file bytes.Buffer
	SetupWithWriters(&stderr, &file)
	SetLevel("DEBUG")

	L.Debug("visible")
	require.Contains(t, file.String(), "visible")
}
