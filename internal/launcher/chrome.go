package launcher

import (
	"fmt"
	"os"
	"os/exec"

	rodlauncher "github.com/go-rod/rod/lib/launcher"

	"chromedoctor/internal/config"
)

// chromeBinaries are the executable names tried on PATH, most specific
// first.
var chromeBinaries = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
}

// FindChrome locates the browser executable. Resolution order: the
// configured override path, PATH lookup of the known binary names, the
// well-known install locations, and finally rod's own browser
// discovery, which also knows per-user and flatpak installs.
func FindChrome(cfg *config.Config) (string, error) {
	if cfg.ChromePath != "" {
		if isExecutable(cfg.ChromePath) {
			return cfg.ChromePath, nil
		}
		return "", fmt.Errorf("%w: configured path %s is not executable", ErrChromeNotFound, cfg.ChromePath)
	}

	for _, name := range chromeBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	for _, path := range config.ChromeCandidates() {
		if isExecutable(path) {
			return path, nil
		}
	}
	if path, has := rodlauncher.LookPath(); has {
		return path, nil
	}
	return "", fmt.Errorf("%w: set chrome_path in the config or $CHROME_PATH", ErrChromeNotFound)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}
