// Package domain models per-flight humidity observations and their
// aggregated, ranked forms.
//
// # Data Source
//
// Raw observations come from a flight weather feed: one row per flight leg
// with the aircraft tail number, origin and destination airport codes, the
// calendar date split into year/month/day columns, and the relative humidity
// measured at the origin airport. The feed arrives either as a CSV extract
// (read in bounded chunks) or as flat JSON rows on a Kafka topic published by
// the upstream collector.
//
// # Missing humidity convention
//
// The feed encodes an absent humidity reading three ways: an empty field, the
// literal string "NaN" (any case), or garbage that does not parse as a float.
// All three are treated identically as missing. Missing rows are dropped
// before aggregation and never count toward a group mean.
//
// # Week buckets
//
// Dates are bucketed into four fixed week-of-month partitions:
//
//	day  1-7  -> week 1
//	day  8-15 -> week 2
//	day 16-22 -> week 3
//	day 23+   -> week 4
//
// This is a fixed-boundary partition of the month, deliberately not ISO
// calendar weeks, so that every month has exactly four buckets.
//
// # Rounding
//
// Group means are rounded to two decimal places using round-half-to-even
// (banker's rounding), matching IEEE 754 default rounding. See [RoundHumidity].
//
// # Takeoff ranks
//
// Ranks are relative to the batch being classified, not absolute thresholds:
// the classifier clusters a batch three ways by humidity, orders the clusters
// by mean humidity ascending, and labels them Good, Moderate, Bad in that
// order. Raw cluster indices are arbitrary and never exposed.
//
// # Milestones
//
// Pipelines coordinate through an append-only milestone log in the store.
// Each milestone has a named kind (e.g. "ingestion.completed") so a
// downstream pipeline can gate on a specific upstream event rather than on
// the log merely having grown.
package domain
