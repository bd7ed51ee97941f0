// Package browser opens article links in the user's default browser.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// command builds the platform launcher for rawURL. Tests replace it.
var command = func(rawURL string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", rawURL)
	case "windows":
		// Use rundll32 instead of cmd /c start to avoid shell interpretation
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		return exec.Command("xdg-open", rawURL)
	}
}

// Validate accepts only absolute http and https URLs.
func Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open URL with scheme %q (only http/https allowed)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("refusing to open URL without a host: %q", rawURL)
	}
	return nil
}

func Open(rawURL string) error {
	if err := Validate(rawURL); err != nil {
		return err
	}
	if err := command(rawURL).Start(); err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	return nil
}
