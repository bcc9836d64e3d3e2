// Package quoll is an embedded, multi-collection persistent document
// store. One open session ([DB], created through [Builder.Build]) owns one
// backing store and multiplexes it into named, independently addressable
// sub-stores: untyped document collections and typed object repositories.
//
// The package is designed for concurrent workloads: DB, Collection, and
// Repository methods are safe to call from multiple goroutines after
// initialization. Compact and Close are the documented exception and must
// be serialized against in-flight writes by the caller.
//
// # Architecture boundaries
//
// quoll is the session-lifecycle and namespace layer. It decides which
// names exist, which are reserved, and how commit, compaction, credential
// checks, and shutdown are coordinated across every open collection
// sharing one store. The bytes-on-disk engine is behind the [store.Store]
// interface (implementations under store/memory and store/redis), and
// query/index evaluation is out of scope.
//
// # What this package must NOT do
//
//   - Reach around store.Store into backend-specific state (file handles,
//     Redis clients) from the facade.
//   - Keep a collection or repository alive past Close: the registry walk
//     in Close is the single teardown path.
//   - Allow two live Collection instances for one map name in one session.
package quoll
