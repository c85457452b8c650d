// Package domain models the hazard-aware navigation core: live position
// samples, accident hazard points, proximity alerts, and candidate routes.
//
// # Proximity
//
// Distances are great-circle (haversine) distances on a sphere of radius
// 6371 km, the same constant the route analysis service uses when it
// reports route lengths. [ComputeAlerts] keeps every hazard whose distance
// is at most the alert radius (inclusive) and orders the survivors by
// distance, breaking ties by hazard id so output is deterministic.
//
// Escalation tiers are fixed distance buckets:
//
//	< 0.15 km   immediate
//	< 0.30 km   urgent
//	otherwise   warning (up to the alert radius, default 0.5 km)
//
// Hazard records come from an accident dataset and are frequently
// incomplete. A record without usable coordinates is skipped rather than
// failing the whole computation: one bad row must not blank the overlay.
// Records without an id are keyed as "<lat>-<lng>".
//
// # Routes
//
// The route analysis service returns one recommended route followed by
// alternatives. Its ordering is a weighted blend of distance and risk, so
// index 0 is not necessarily the lowest-risk route; [Rank] keeps that order
// unless [RankByRisk] is requested.
//
// Risk percentage labels are strings such as "55%". [ParseRiskPercent]
// reads the leading integer of the label. Selecting a non-recommended route
// whose label parses to 40 or more raises a [RouteWarning].
package domain
