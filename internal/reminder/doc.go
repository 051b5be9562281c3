// Package reminder holds the pure decision logic of remindd.
//
// Decide maps a distance-to-due and the active settings to a policy
// (repeat or once). Gate checks whether "now" is a task's notification
// minute in the task's own timezone. Occasion gives every firing decision a
// canonical key; the key is what the dedup layer reserves.
//
// Nothing in this package touches storage or the network.
package reminder
