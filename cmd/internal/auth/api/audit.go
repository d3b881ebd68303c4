package authapi

import (
	"net"
	"net/http"
	"strings"
)

// audit emits a security event on the handler's logger. Tokens and keys must
// never be passed as attrs.
func (h *Handler) audit(r *http.Request, action string, attrs ...any) {
	if h == nil || h.log == nil {
		return
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	base := []any{"action", action}
	if ip := clientIP(r, h.cfg.TrustProxy); ip != nil {
		base = append(base, "ip", ip.String())
	}
	if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
		base = append(base, "user_agent", ua)
	}
	h.log.InfoContext(r.Context(), "auth.audit", append(base, attrs...)...)
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
