package models

// RequestContext holds what is known about the client that triggered an
// auction. It is derived from the request's User-Agent and IP address and is
// attached to analytics events; it never influences the auction itself.
type RequestContext struct {
	DeviceType string // "mobile", "desktop", "tablet" or "other". Derived from User-Agent.
	OS         string // Operating system name and version, e.g. "iOS 15.1".
	Browser    string // Browser name and version, e.g. "Chrome 98.0".
	IsBot      bool   // True if the User-Agent is a known crawler.
	Country    string // ISO 3166-1 alpha-2 code from the client IP, empty if unknown.
}
