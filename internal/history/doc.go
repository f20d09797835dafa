// Package history samples the live connection count into a retained series.
//
// The Sampler runs one goroutine for the process lifetime: every interval it
// appends (now, count) to the history store and prunes samples older than the
// retention horizon. Reads go through GetHistory, which synthesizes a single
// current sample when the stored series is empty or stale so status queries
// always have a usable data point.
package history
