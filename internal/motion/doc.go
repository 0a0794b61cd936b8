// Package motion folds a batch of pointer-motion samples into one event.
//
// The capture source can deliver hundreds of motion samples per second.
// Persisting each one is wasteful, so samples gathered during one callback
// are summarised: distances are summed, velocity is the peak, and the angle
// is the distance-weighted mean of the sample angles.
package motion
