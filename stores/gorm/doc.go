//go:build !wasm
// +build !wasm

// Package gorm provides a relational-database implementation of the
// authkit.Storage interface using GORM. It works with any GORM dialect
// (Postgres, MySQL, SQLite).
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{})
//	if err := authgorm.AutoMigrate(db); err != nil {
//	    log.Fatal(err)
//	}
//	storage := authgorm.NewStorage(db)
//
// The users table carries a unique index on email, so a concurrent
// duplicate registration that slips past the application-level check is
// still rejected by the database.
package gorm
