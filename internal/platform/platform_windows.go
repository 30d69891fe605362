//go:build windows

package platform

// Current returns the family of the host platform.
func Current() Family {
	return Windows
}
