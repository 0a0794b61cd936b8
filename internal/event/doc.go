// Package event defines the input event domain model.
//
// The model is independent of the wire layout used by the capture source:
//   - Type: closed enumeration of capture codes (CGEventType numbering)
//   - Category: the partition every Type falls into
//   - Base: fields shared by all events (display, process, timing)
//   - Detail: the kind-specific payload, sealed to this package
//
// An Event can only be built through New, which rejects a Detail whose
// category disagrees with the Base type. Once built an Event owns all of
// its data and holds no references into foreign memory.
package event
