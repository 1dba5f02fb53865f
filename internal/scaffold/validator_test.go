package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckExisting(t *testing.T) {
	tests := []struct {
		name      string
		setupFunc func(dir string)
		wantErr   bool
	}{
		{
			name:      "no existing files",
			setupFunc: func(string) {},
			wantErr:   false,
		},
		{
			name: "existing kasm.yml",
			setupFunc: func(dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "kasm.yml"), []byte("group: '12'"), 0644))
			},
			wantErr: true,
		},
		{
			name: "unrelated working directories are fine",
			setupFunc: func(dir string) {
				require.NoError(t, os.MkdirAll(filepath.Join(dir, "unpack_07"), 0755))
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setupFunc(dir)

			err := CheckExisting(dir)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "project already initialized")
			assert.Contains(t, err.Error(), "kasm init --force")
		})
	}
}
