// Package env holds the engine's tunables as plain typed package-level
// values — no environment-variable parsing layer, matching how the rest of
// this codebase keeps configuration as ordinary Go data rather than reaching
// for a config-file/flags library for a handful of constants.
package env

// KeyNameMaxLen is the platform key-size cap: the maximum length, in bytes,
// of a single dotted-path segment or of the full dotted path passed to a
// typed-object operation. Exceeding it is ENAMETOOLONG.
var KeyNameMaxLen = 1536

// ObjectMaxKeys is the per-object size cap: the maximum number of immediate
// keys a single typed object may hold before further inserts return EOBIG.
var ObjectMaxKeys = 1 << 20

// EventQueueDepth is the capacity of the async marker-fire publish queue
// (internal/host/events). Publishes beyond this depth are dropped and
// logged rather than blocking the command thread.
var EventQueueDepth = 4096

// EventWorkerCount is the number of goroutines draining the publish queue.
var EventWorkerCount = 4

// SnapshotFormatVersion is written into every persisted typed-object
// snapshot; a mismatch on load causes the loader to treat the object as
// absent rather than guess at an incompatible layout.
var SnapshotFormatVersion uint32 = 1

// RedisAddr and RedisDB select the backing store for typed-object
// snapshots: plain overridable package vars, not an env-parsing layer.
var RedisAddr = "localhost:6379"
var RedisDB = 0

// ListenAddr is the address cmd/selvad binds its HTTP command surface to.
var ListenAddr = "127.0.0.1:8080"

// Admin holds the single administrative credential gating session login
// and HTTP Basic access for the command routes under /api (object.*,
// subscriptions.*, modify).
var Admin = struct {
	Username string
	Password string
}{
	Username: "admin",
	Password: "selva",
}

// SessionSecret signs the cookie session store. A fixed dev default;
// production deployments should override it before listening publicly.
var SessionSecret = "selva-engine-dev-session-secret"
