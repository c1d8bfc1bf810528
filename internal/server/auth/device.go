package auth

import "strings"

// ipPrefixLen is how many leading characters of two IP strings must agree
// for them to count as the same network.
const ipPrefixLen = 8

// DeviceInfo is the device metadata remembered alongside a refresh token.
type DeviceInfo struct {
	UserAgent   string
	IPAddress   string
	DeviceClass string
}

// Empty reports whether nothing about the device was recorded.
func (d DeviceInfo) Empty() bool {
	return d.UserAgent == "" && d.IPAddress == "" && d.DeviceClass == ""
}

// DeviceClass derives "<form factor> - <OS family>" from a User-Agent string
// by substring matching, e.g. "Mobile - Android" or "Desktop - Windows".
func DeviceClass(userAgent string) string {
	return formFactor(userAgent) + " - " + osFamily(userAgent)
}

func formFactor(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"),
		strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"):
		return "Tablet"
	case strings.Contains(ua, "mobi"), strings.Contains(ua, "iphone"), strings.Contains(ua, "android"):
		return "Mobile"
	default:
		return "Desktop"
	}
}

func osFamily(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows"
	// iOS user agents also mention "Mac OS X", so check them first.
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ipod"):
		return "iOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "mac os"), strings.Contains(ua, "macintosh"):
		return "Mac OS"
	case strings.Contains(ua, "linux"), strings.Contains(ua, "x11"):
		return "Linux"
	default:
		return "Unknown OS"
	}
}

// SameDevice decides whether a refresh request probably comes from the
// device the token was last used on. Either signal is enough: the stored
// User-Agent contains the presented one's device class, or the IP prefixes
// agree. With nothing stored there
// is nothing to compare, so the answer is yes.
func SameDevice(stored DeviceInfo, userAgent, ipAddress string) bool {
	if stored.Empty() {
		return true
	}

	if stored.UserAgent != "" && userAgent != "" && strings.Contains(stored.UserAgent, DeviceClass(userAgent)) {
		return true
	}

	if stored.IPAddress != "" && ipAddress != "" && ipPrefix(stored.IPAddress) == ipPrefix(ipAddress) {
		return true
	}

	return false
}

func ipPrefix(ip string) string {
	if len(ip) <= ipPrefixLen {
		return ip
	}
	return ip[:ipPrefixLen]
}
