// Package memstore provides in-memory implementations of the catalog persistence ports,
// the outbox Store and generic read-model stores.
//
// Transact runs each local write against a private copy of the state and swaps it in on
// success, so a failing write leaves no trace. Writes are serialized by one mutex;
// calling Transact from inside a TxFunc deadlocks.
package memstore
