package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kareemsasa3/rinkcal/internal/config"
)

func TestChromePathPrefersConfig(t *testing.T) {
	l := NewLauncher(config.DiscoveryConfig{ChromePath: "/opt/chrome/chrome"}, "ua", nil)
	assert.Equal(t, "/opt/chrome/chrome", l.chromePath())
}

func TestChromePathProbesKnownLocations(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, "chromium")
	assert.NoError(t, os.WriteFile(fake, []byte{}, 0o755))

	saved := chromePaths
	chromePaths = []string{filepath.Join(dir, "missing"), fake}
	defer func() { chromePaths = saved }()

	l := NewLauncher(config.DiscoveryConfig{}, "", nil)
	assert.Equal(t, fake, l.chromePath())
}
