package auth

import "snw-store/internal/config"

// OriginPolicy rejects cross-site requests in production. Outside production
// every request passes.
type OriginPolicy struct {
	enforce bool
	allowed map[string]struct{}
}

func NewOriginPolicy(enforce bool, origins []string) OriginPolicy {
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		if normalized := config.NormalizeOrigin(origin); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}
	return OriginPolicy{enforce: enforce, allowed: allowed}
}

// Allows checks Origin when the browser sent one and falls back to the
// Referer's origin otherwise. A request with neither is rejected.
func (p OriginPolicy) Allows(meta RequestMeta) bool {
	if !p.enforce {
		return true
	}

	candidate := meta.Origin
	if candidate == "" {
		candidate = meta.Referer
	}
	if candidate == "" {
		return false
	}

	normalized := config.NormalizeOrigin(candidate)
	if normalized == "" {
		return false
	}
	_, ok := p.allowed[normalized]
	return ok
}
