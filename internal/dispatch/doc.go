// Package dispatch selects and runs the business-rule handlers that apply to
// a case-event callback.
//
// A Dispatcher is built once at startup from an explicit handler slice (the
// composition root lives in cmd/). For each callback it:
//
//  1. Selects the handlers whose CanHandle returns true for the phase.
//  2. Runs them in Priority order (EARLIEST first); handlers sharing a
//     priority run in registration order.
//  3. Feeds each handler the case data produced by the previous one and
//     accumulates errors and warnings across the whole chain.
//
// Validation failures are data, not Go errors: handlers append to
// Result.Errors or Result.Warnings and the chain keeps running so one round
// trip surfaces every problem. A Go error returned from Handle is fatal and
// aborts the chain; it is reserved for contract violations such as
// ErrCodeInvalidInvocation and for delivery failures in the notification
// pipeline.
//
// # Thread Safety
//
// Dispatcher holds no mutable state after New returns and is safe for
// concurrent use. A single Callback must not be dispatched concurrently.
package dispatch
