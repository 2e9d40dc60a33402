// Package auth is the client side session layer of the inventory
// application: it decodes bearer tokens, keeps the session and its
// permission set, and guards navigation.
//
// Session store:
//   - Store owns the token, the user decoded from it and the permission set.
//     Login persists the token before publishing the session, Initialize
//     restores a persisted token once (concurrent callers share the same
//     restore) and Logout never fails.
//   - Readers get a Session snapshot; a session is only trusted for
//     permission checks once PermissionsLoaded is set.
//
// Navigation guard:
//   - Guard evaluates a route descriptor against the session and returns a
//     Decision: allow, or redirect to the login route (keeping the requested
//     location) or to the fallback route.
//   - Routes come from a RouteTable. Unknown paths are public.
//
// Activity sinks:
//   - ActivitySink receives login, logout, restore and navigation denial
//     events. Sinks run best effort, errors are logged.
package auth
