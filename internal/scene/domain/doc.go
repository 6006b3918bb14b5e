// Package domain defines the shared scene document edited by every client in a
// project room: its objects, the camera pose and the invariants that keep the
// replicas representable.
//
// The document carries no synchronization behavior. Clients mutate it on their
// event loop, the diff package compares snapshots of it, and the storage
// gateways persist it.
package domain
