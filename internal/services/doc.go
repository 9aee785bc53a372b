// Package services talks to the Spotify Web API on behalf of events and users.
//
// # Sessions
//
// [SessionManager] reads a principal's access token from the [CredentialStore] and renews it through a
// [TokenRefresher] when the API rejects it. Concurrent renewals of one principal collapse into a single
// refresh-token grant.
//
// # Gateway
//
// [Gateway] executes a [Request] with an explicitly threaded token. On a 401 it refreshes once and retries once.
// Other failures are classified, never retried:
//   - 404 : [shared.ErrHostOffline]
//   - 403 : [shared.ErrForbidden]
//   - 429 : [shared.ErrRateLimited] with Retry-After
//   - anything else, transport failures, and undecodable bodies : [shared.ErrUpstream]
//
// Request builders in spotify.go cover each endpoint the queue needs.
package services
