// Package capture wires a capture source to the store.
//
// A Pipeline is the application context for one capture run. It is handed
// to a Source as a boundary.Sink and, for every callback:
//
//	raw record   -> boundary.Adapter.Convert   -> store.RecordEvent
//	motion batch -> ConvertMotionBatch -> motion.Aggregate -> store.RecordEvent
//
// Callbacks never fail from the source's point of view. A record that cannot
// be converted, aggregated or persisted is dropped, counted in Stats and
// logged through a rate limiter so a flood of bad input cannot stall the
// callback on logging. Out-of-band notifications (the capture source being
// switched off) are reported through OnTapDisabled and never stored.
package capture
