package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workmait/digestd/internal/event"
)

func TestCommandsRegistered(t *testing.T) {
	expected := map[string]bool{
		"add":        false,
		"delete":     false,
		"move":       false,
		"drop-store": false,
		"dlq":        false,
	}

	for _, cmd := range rootCmd.Commands() {
		name := strings.Fields(cmd.Use)[0]
		if _, ok := expected[name]; ok {
			expected[name] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "command %q should be registered", name)
	}
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAdd_PublishesEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	out, err := runCommand(t,
		"add", "docs/report.pdf",
		"--redis-addr", mr.Addr(),
		"--namespace", "acme",
		"--strategy", "standard",
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, event.TypeAddNodes)

	msgs, err := client.XRange(context.Background(), event.TypeAddNodes, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestAdd_UnknownExtensionNeedsFileType(t *testing.T) {
	_, err := runCommand(t, "add", "docs/archive.zip", "--redis-addr", "localhost:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--file-type")
}

func TestDropStore_RequiresConfirmation(t *testing.T) {
	_, err := runCommand(t, "drop-store", "acme", "--redis-addr", "localhost:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestFileTypeFor(t *testing.T) {
	tests := []struct {
		path string
		flag string
		want event.FileType
	}{
		{path: "a.pdf", want: event.FileTypePDF},
		{path: "b.XLSX", want: event.FileTypeExcel},
		{path: "c.md", want: event.FileTypeDoc},
		{path: "d.pptx", want: event.FileTypePPT},
		{path: "anything.bin", flag: "pdf", want: event.FileTypePDF},
	}
	for _, tt := range tests {
		got, err := fileTypeFor(tt.path, tt.flag)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got)
	}

	_, err := fileTypeFor("unknown.bin", "")
	assert.Error(t, err)
}
