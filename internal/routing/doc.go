// Package routing holds the active webhook routing table and keeps it in sync
// with the configuration on disk.
//
// Table is safe for concurrent use. Request handlers take the read lock only
// for the lookup and receive a copy of the matching definition, so a reload
// never changes a delivery that is already in flight. Reloads parse the whole
// configuration outside the lock and swap the table under the write lock in
// one step: readers observe either the old table or the new one.
//
// Watcher subscribes to filesystem events for the configuration source and
// rebuilds the table after a short debounce. If the new configuration cannot
// be loaded the previous table stays active.
package routing
