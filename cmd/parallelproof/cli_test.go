package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longregen/parallelproof/internal/config"
)

func TestLanguageFromPath(t *testing.T) {
	assert.Equal(t, "python", languageFromPath("slow.py"))
	assert.Equal(t, "sql", languageFromPath("/tmp/Query.SQL"))
	assert.Equal(t, "text", languageFromPath("notes"))
}

func TestReadSource_Stdin(t *testing.T) {
	code, err := readSource("-", strings.NewReader("print(1)\n"))
	require.NoError(t, err)
	assert.Equal(t, "print(1)\n", code)

	_, err = readSource("/does/not/exist.py", nil)
	assert.Error(t, err)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(not set)", maskSecret(""))
	assert.Equal(t, "(set)", maskSecret("short"))
	assert.Equal(t, "sk-a...wxyz", maskSecret("sk-abcdefghwxyz"))
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	l.Info("hidden")
	l.Warn("shown", "task_id", "task_1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"task_id":"task_1"`)
}

func TestStrategiesCmd_ListsCatalogInOrder(t *testing.T) {
	cfg = config.DefaultConfig()

	var buf bytes.Buffer
	cmd := strategiesCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 9)
	assert.Contains(t, lines[0], "CATEGORY")
	assert.Contains(t, lines[1], "Database Index Optimization")
	assert.Contains(t, lines[8], "Connection Pooling")
}
