package bootstrap

import (
	"os/exec"
	"runtime"

	"go.uber.org/zap"
)

// OpenBrowser opens the URL in the system's default browser. Failure is not
// fatal; the caller prints the URL so the user can open it by hand.
func OpenBrowser(logger *zap.Logger, url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default: // "linux", "freebsd", "openbsd", "netbsd"
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logger.Warn("bootstrap.open_browser_failed", zap.Error(err))
	}
}
