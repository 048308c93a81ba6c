package browser

import (
	"fmt"
	"math/rand"
)

// Fingerprint holds the navigator values reported to the page on top of
// the go-rod/stealth patches.
type Fingerprint struct {
	Platform            string
	Language            string
	HardwareConcurrency int
	DeviceMemory        int
}

// DefaultFingerprint returns values typical of a desktop Chrome install.
func DefaultFingerprint() *Fingerprint {
	platforms := []string{"Win32", "MacIntel"}
	return &Fingerprint{
		Platform:            platforms[rand.Intn(len(platforms))],
		Language:            "en-US",
		HardwareConcurrency: 4 + 2*rand.Intn(5),
		DeviceMemory:        8,
	}
}

// JS returns the script installed before any page script runs.
func (f *Fingerprint) JS() string {
	return fmt.Sprintf(`(() => {
	const define = (name, value) => Object.defineProperty(navigator, name, { get: () => value });
	define('platform', %q);
	define('language', %q);
	define('languages', [%q, 'en']);
	define('hardwareConcurrency', %d);
	define('deviceMemory', %d);
})();`, f.Platform, f.Language, f.Language, f.HardwareConcurrency, f.DeviceMemory)
}
