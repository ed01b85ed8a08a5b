/*
Package store is the typed facade over the competition's shared broker.

Every piece of shared state lives in Redis under colon-separated keys
scoped by competition name; the key layout is an implementation detail of
this package. Records are YAML-serialized, toasts are JSON on pub/sub
channels, and all atomicity (SETNX, INCR, ZADD, per-field TTL) is
delegated to the broker. The store holds no local caches.

One Store serves one competition. Writers are partitioned by convention:
the scheduler owns the ledger and current-state records, the lifecycle
operations own the state machine, the overlay owns the subnet map, and
the box event channel owns cooldowns.
*/
package store
