// Package overkiz is a thin client for the Overkiz enduser API as
// exposed by Somfy TaHoma gateways, covering only the verbs shadesync
// needs: setup listing, command and scenario execution, and the
// register/fetch/unregister event listener cycle.
//
// # Endpoints
//
// The client talks either to the gateway's local API
// (https://gateway-{pin}.local:8443, developer mode, self-signed
// certificate) or to the Somfy cloud. Both use the same paths under
// /enduser-mobile-web/1/enduserAPI/ with bearer-token auth.
//
// # Serialization
//
// The gateway firmware handles one request at a time gracefully and
// degrades badly under parallel load, so the client serializes all
// requests through a single mutex. Callers on different goroutines
// simply queue.
//
// # Error taxonomy
//
// HTTP failures map onto sentinel errors the poller and controller
// branch on: ErrNotAuthenticated is fatal, ErrListenerExpired asks for
// a re-register, ErrRateLimited and ErrExecutionQueueFull ask for
// backoff. Plain transport failures come back wrapped and are treated
// as transient.
package overkiz
