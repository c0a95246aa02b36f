// Package session owns the lifecycle of the isolated browser session each
// scenario runs in.
//
// A Manager opens a Session: one browser of the chosen engine (chromium,
// firefox or webkit, chromium when unset), one browsing context and one page.
// Launch failures are fatal to the scenario and surface as
// *InfrastructureError. Closing tears down page, context and browser in that
// order, attempts every step even when an earlier one fails, and only takes
// effect once, so teardown can call it unconditionally.
//
// The playwright driver process is started lazily by the first Open and
// shared by every session a Manager opens. Call Manager.Shutdown once the
// suite is done.
package session
