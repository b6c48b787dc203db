package domain

import "time"

// DiscoveryMethod records how a source entered the candidate pool.
type DiscoveryMethod string

const (
	DiscoverySeed           DiscoveryMethod = "seed"
	DiscoveryLinkFollow     DiscoveryMethod = "link_follow"
	DiscoveryRecommendation DiscoveryMethod = "recommendation"
)

// Trust score bounds. The floor is deliberately above zero so a
// penalized source can still earn its way back.
const (
	TrustFloor = 0.1
	TrustCeil  = 1.0
)

// Source is an origin documents are crawled from. Sources are never
// deleted; they are deactivated when their trust falls below the
// activation threshold or they go stale.
type Source struct {
	URL           string
	Platform      string
	Strategy      string
	Discovery     DiscoveryMethod
	ParentURL     string
	Trust         float64
	Active        bool
	LastCrawledAt time.Time
	TotalDocs     int
	HighValueDocs int
}

// ClampTrust forces a trust value back into [TrustFloor, TrustCeil].
func ClampTrust(v float64) float64 {
	if v < TrustFloor {
		return TrustFloor
	}
	if v > TrustCeil {
		return TrustCeil
	}
	return v
}

// ClampScore forces a document score back into [0, 1].
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
