// Package era implements the era-gate oracle: a pure table lookup from
// a data family and a season year to whether ingestion is allowed.
package era

import "fmt"

// Family names a data family subject to an era restriction.
type Family string

const (
	FamilyHustle         Family = "hustle"
	FamilyTracking       Family = "tracking"
	FamilyStatsAPICore   Family = "stats_api_core" // box / pbp / shot chart / lineups / team advanced
	FamilyBulkRAPTOR     Family = "bulk_raptor"
	FamilyDraftCombine   Family = "draft_combine"
	FamilyUnrestricted   Family = "unrestricted"
)

// firstAllowed maps each restricted family to the first season year
// (start-year convention, e.g. 1996 means the 1996-97 season) it may be
// ingested for. Families absent from this table are unrestricted.
var firstAllowed = map[Family]int{
	FamilyHustle:       2015,
	FamilyTracking:     2013,
	FamilyStatsAPICore: 1996,
	FamilyBulkRAPTOR:   1976,
	FamilyDraftCombine: 2000,
}

// Decision is the era gate's verdict for one (family, season) pair.
type Decision struct {
	Allowed bool
	Reason  string
}

// Check is the pure table lookup described by the oracle. It has no
// side effects and performs no I/O; it is safe to call from any
// goroutine without synchronization.
func Check(family Family, seasonYear int) Decision {
	min, restricted := firstAllowed[family]
	if !restricted {
		return Decision{Allowed: true}
	}
	if seasonYear >= min {
		return Decision{Allowed: true}
	}
	return Decision{
		Allowed: false,
		Reason:  fmt.Sprintf("era_not_supported: %s<%d", family, min),
	}
}

// FirstAllowed returns the minimum season year for family and whether
// the family is restricted at all.
func FirstAllowed(family Family) (int, bool) {
	min, restricted := firstAllowed[family]
	return min, restricted
}
