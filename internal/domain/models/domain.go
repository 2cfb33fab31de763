package models

import "strings"

// Domain identifies the originating source category of an event.
const (
	DomainMarket = "market"
	DomainNews   = "news"
	DomainSocial = "social"
	DomainFusion = "fusion"
	DomainAlert  = "alert"
)

// FusionSourceDomains are the domains eligible for cross-source correlation.
var FusionSourceDomains = []string{DomainSocial, DomainMarket, DomainNews}

// NormalizeDomain lowercases and trims a domain string.
func NormalizeDomain(d string) string {
	return strings.ToLower(strings.TrimSpace(d))
}

// IsValidDomain reports whether d is a known domain.
func IsValidDomain(d string) bool {
	switch NormalizeDomain(d) {
	case DomainMarket, DomainNews, DomainSocial, DomainFusion, DomainAlert:
		return true
	}
	return false
}
