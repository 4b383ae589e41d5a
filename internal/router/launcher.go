package router

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// NewLocalBrowser launches a local headless Chromium with the
// anti-detection flags the teacher's NewLauncher uses, for deployments
// that don't point at an external headless service.
func NewLocalBrowser() (*rod.Browser, error) {
	l := launcher.New().
		Headless(true).
		Set("--disable-blink-features", "AutomationControlled").
		Set("--no-sandbox").
		Set("--disable-setuid-sandbox").
		Set("--disable-gpu").
		Set("--disable-dev-shm-usage").
		Set("--disable-extensions")

	u, err := l.Launch()
	if err != nil {
		return nil, err
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, err
	}
	return browser, nil
}

// ConnectRemoteBrowser connects to an externally managed headless
// endpoint (e.g. a browserless/chrome instance), the RIPTIDE_HEADLESS_URL
// deployment mode.
func ConnectRemoteBrowser(controlURL string) (*rod.Browser, error) {
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, err
	}
	return browser, nil
}
