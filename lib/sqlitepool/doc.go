// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides a SQLite connection pool and the
// [Handle] through which archives store one.
//
// A live pool cannot be serialized: its connections belong to this
// process. An archive stores a [Handle] instead, by recipe: only the
// database path and pool size are written, and the handle reopens the
// pool lazily on first use after decoding. If the database is missing
// by then, the handle decodes anyway and [Handle.Pool] reports the
// error. Loading an archive never fails because a referenced database
// is gone.
//
// The pool wraps zombiezen.com/go/sqlite's sqlitex.Pool. Every
// connection is prepared with WAL journaling, NORMAL synchronous, a
// five second busy timeout and an in-memory temp store.
//
//	handle := sqlitepool.NewHandle("/data/prices.db", 4)
//	pool, err := handle.Pool()
//	if err != nil {
//	    return err
//	}
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
//
// Importing this package registers the handle recipe in
// typereg.Default() under [HandleID].
package sqlitepool
