// Package all wires every built-in storage backend into the storage factory.
//
// It exists only for side effects: importing it runs each backend's init,
// which registers its factory. After that the following kinds resolve through
// storage.New:
//
//   - "mysql"    (magload/internal/storage/mysql, the default)
//   - "postgres" (magload/internal/storage/postgres)
//   - "mssql"    (magload/internal/storage/mssql)
//   - "sqlite"   (magload/internal/storage/sqlite)
//
// Typical usage in a wiring layer:
//
//	import _ "magload/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "mysql", Host: "localhost", Database: "MAG"})
//	if err != nil {
//	    // handle error
//	}
//	defer repo.Close()
//	res, err := repo.Load(ctx, payments)
//
// A binary that needs fewer backends can import them individually instead.
package all

import (
	_ "magload/internal/storage/mssql"
	_ "magload/internal/storage/mysql"
	_ "magload/internal/storage/postgres"
	_ "magload/internal/storage/sqlite"
)
