// Package admission decides whether a caller may start another execution.
//
// Two independent checks are offered per opaque key: a sliding request
// window (TryAcquire) and a per-session token quota (TryUseTokens). State is
// process-local and created lazily; Sweep (or Start) evicts keys that stay
// idle longer than Config.IdleTTL once their window is empty. A key holding a
// session token total survives until Reset.
package admission
