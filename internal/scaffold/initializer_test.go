package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dyluth/kasm/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name      string
		force     bool
		setupFunc func(dir string)
		wantErr   string
	}{
		{
			name:      "fresh initialization",
			setupFunc: func(string) {},
		},
		{
			name:  "refuses to overwrite without force",
			force: false,
			setupFunc: func(dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "kasm.yml"), []byte("old content"), 0644))
			},
			wantErr: "project already initialized",
		},
		{
			name:  "force overwrites existing config",
			force: true,
			setupFunc: func(dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "kasm.yml"), []byte("old content"), 0644))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setupFunc(dir)

			cfg := config.Default()
			cfg.Group = "12"
			cfg.RepackFilter = `\.pdf$`
			cfg.RepackStructure = config.StructureIndividuals

			path, err := Initialize(dir, cfg, tt.force)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				data, readErr := os.ReadFile(filepath.Join(dir, "kasm.yml"))
				require.NoError(t, readErr)
				assert.Equal(t, "old content", string(data))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "kasm.yml"), path)

			loaded, err := config.Load(path)
			require.NoError(t, err)
			assert.Equal(t, "12", loaded.Group)
			assert.Equal(t, config.StructureIndividuals, loaded.RepackStructure)
			assert.Equal(t, config.DefaultGroupsRegex, loaded.GroupsRegex)
		})
	}
}

func TestInitialize_InvalidConfigWritesNothing(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Group = "12"
	cfg.GroupsRegex = `no capture group`

	_, err := Initialize(dir, cfg, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "groups_regex")
	assert.NoFileExists(t, filepath.Join(dir, "kasm.yml"))
}
