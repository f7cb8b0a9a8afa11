package logic

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/avct/uasurfer"

	"github.com/patrickwarner/adbroker/internal/geoip"
	"github.com/patrickwarner/adbroker/internal/models"
)

// ResolveRequestContextFromUA parses a raw User-Agent string with uasurfer.
func ResolveRequestContextFromUA(uaString string) models.RequestContext {
	u := uasurfer.Parse(uaString)

	var deviceType string
	switch u.DeviceType {
	case uasurfer.DeviceComputer:
		deviceType = "desktop"
	case uasurfer.DevicePhone:
		deviceType = "mobile"
	case uasurfer.DeviceTablet:
		deviceType = "tablet"
	default:
		deviceType = "other"
	}

	v := u.OS.Version
	bv := u.Browser.Version
	return models.RequestContext{
		DeviceType: deviceType,
		OS:         fmt.Sprintf("%s %s %d.%d.%d", u.OS.Platform.String(), u.OS.Name.String(), v.Major, v.Minor, v.Patch),
		Browser:    fmt.Sprintf("%s %d.%d.%d", u.Browser.Name.String(), bv.Major, bv.Minor, bv.Patch),
		IsBot:      u.IsBot(),
	}
}

// ResolveRequestContext combines the User-Agent and the client IP. The country
// stays empty when g is nil or the IP is unknown.
func ResolveRequestContext(g *geoip.GeoIP, uaString, ipString string) models.RequestContext {
	ctx := ResolveRequestContextFromUA(uaString)
	if ip := net.ParseIP(ipString); ip != nil && g != nil {
		ctx.Country = g.Country(ip)
	}
	return ctx
}

// ResolveRequestContextFromRequest resolves the context of an incoming HTTP request.
func ResolveRequestContextFromRequest(r *http.Request, g *geoip.GeoIP) models.RequestContext {
	return ResolveRequestContext(g, r.Header.Get("User-Agent"), ClientIP(r))
}

// ClientIP returns the first X-Forwarded-For address, falling back to the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx != -1 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
