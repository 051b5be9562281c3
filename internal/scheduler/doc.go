// Package scheduler runs the periodic reminder scan.
//
// Each tick lists active settings and open tasks, evaluates every task in its
// own timezone, reserves due occasions in the dedup store and hands the
// rendered text to the dispatcher. Ticks are serialised, debounced per
// minute, and sweep the occasion log at the top of each hour.
package scheduler
