package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SulePostar/finetica-sub002/internal/config"
	"github.com/SulePostar/finetica-sub002/internal/session"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()

	want := []string{"login", "logout", "sync", "daemon", "status"}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestSessionPathFor(t *testing.T) {
	cfg := &config.Config{SessionFile: filepath.Join("conf", "session.json")}

	assert.Equal(t, filepath.Join("conf", "session.json"),
		sessionPathFor(cfg, session.DefaultTenant))
	assert.Equal(t, filepath.Join("conf", "session.acme.json"),
		sessionPathFor(cfg, "acme"))
}
