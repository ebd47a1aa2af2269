// Package sla computes service-level breach flags from event timestamps.
// Evaluation is reactive: each check runs exactly once, at the moment the
// qualifying write happens. Nothing polls the clock in the background, so
// a ticket that is never picked or commented never gets flagged.
package sla

import "time"

// ResponseThresholdMinutes is the effective first-response threshold.
// Tickets carry a response_sla_minutes field (default 10) but breach
// evaluation has always run against this fixed value; the field stays
// informational until product settles the mismatch.
const ResponseThresholdMinutes = 1

// PickupBreached reports whether picking at pickedAt violated the pickup
// SLA. The comparison is strict: picking at exactly the threshold is not
// a breach.
func PickupBreached(createdAt, pickedAt time.Time, thresholdMinutes int) bool {
	return pickedAt.Sub(createdAt) > time.Duration(thresholdMinutes)*time.Minute
}

// ResponseBreached reports whether the first staff response at
// respondedAt violated the response SLA. Strict comparison, same as
// PickupBreached.
func ResponseBreached(createdAt, respondedAt time.Time, thresholdMinutes int) bool {
	return respondedAt.Sub(createdAt) > time.Duration(thresholdMinutes)*time.Minute
}
