package browser

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.Headless {
		t.Error("Expected headless to be true by default")
	}

	if opts.Timeout != 30*time.Second {
		t.Errorf("Expected timeout to be 30s, got %v", opts.Timeout)
	}

	if opts.ViewportWidth != 1920 || opts.ViewportHeight != 1080 {
		t.Errorf("Expected viewport to be 1920x1080, got %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}

	if opts.Locale != "ru-RU" {
		t.Errorf("Expected locale to be ru-RU, got %s", opts.Locale)
	}

	if opts.TimezoneID != "Europe/Moscow" {
		t.Errorf("Expected timezone to be Europe/Moscow, got %s", opts.TimezoneID)
	}

	if !opts.BlockResources {
		t.Error("Expected resource blocking to be enabled by default")
	}
}

func TestDefaultInitScriptOverridesWebdriver(t *testing.T) {
	opts := DefaultOptions()

	if !strings.Contains(opts.InitScript, "webdriver") {
		t.Error("Expected init script to override navigator.webdriver")
	}

	if !strings.Contains(opts.InitScript, "window.chrome") {
		t.Error("Expected init script to define a chrome runtime object")
	}
}
