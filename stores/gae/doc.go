//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore implementation of the
// authkit.Storage interface. It is designed for deployment on Google
// Cloud Platform and supports multi-tenancy through Datastore namespaces.
//
// # Datastore Kinds
//
// The package uses the following Datastore kinds:
//   - User: accounts with status, password hash and provider links
//   - Confirmation: pending registration, reset and email-change tokens
//
// # Namespacing
//
// Pass a namespace when creating the storage to isolate data between
// tenants:
//
//	storage := gae.NewStorage(client, "tenant-123")
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	storage := gae.NewStorage(client, "") // default namespace
package gae
