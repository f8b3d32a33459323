package cachedir

import (
	"os"
	"path/filepath"
	"runtime"
)

const appDir = "ms_ipv6"

// Default returns the per-user cache directory of the tool. It does not
// create it.
func Default() string {
	return resolve(runtime.GOOS, os.Getenv, os.UserHomeDir)
}

func resolve(goos string, getenv func(string) string, home func() (string, error)) string {
	if goos == "windows" {
		base := getenv("LOCALAPPDATA")
		if base == "" {
			h, _ := home()
			base = filepath.Join(h, "AppData", "Local")
		}
		return filepath.Join(base, appDir, "cache")
	}

	if xdg := getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir)
	}
	h, err := home()
	if err != nil || h == "" {
		return filepath.Join(os.TempDir(), appDir)
	}
	return filepath.Join(h, ".cache", appDir)
}
