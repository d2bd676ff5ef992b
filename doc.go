// Package authkit is a pluggable registration and login module for web
// applications: email/password registration with mailed confirmation
// links, login/logout, password reset, email change and social login.
//
// # Architecture
//
// User: a local account with an email, a bcrypt password hash, a status
// (confirmation, active or banned) and optional links to social provider
// identities.
//
// Confirmation: a single-use, time-limited token mailed to the user to
// prove control of an email address. Confirmations drive registration
// activation, password resets and email changes.
//
// Service: the flow orchestrator. Each flow validates input, mutates
// Storage, sends mail and returns an Outcome naming the redirect, the
// flash messages and any field errors. When a mail send fails, the flow
// compensates by deleting what it just created so retries can succeed.
//
// Storage: the persistence interface, with implementations for a
// relational database (stores/gorm), Google Cloud Datastore (stores/gae)
// and the filesystem (stores).
//
// # Basic Usage
//
// Wire a Service from a store, a mailer and a config:
//
//	store := stores.NewFSStorage("/path/to/storage")
//	cfg := &authkit.Config{BaseURL: "https://yourapp.com"}
//	service := authkit.NewService(store, &authkit.ConsoleMailer{}, cfg)
//
// Mount the HTTP glue under /auth/ with an scs session manager:
//
//	session := scs.New()
//	kit := authkit.New("MyApp", service, session)
//	mux := http.NewServeMux()
//	mux.Handle("/auth/", http.StripPrefix("/auth", kit.Handler()))
//	http.ListenAndServe(":8080", session.LoadAndSave(mux))
//
// Add social login providers from the oauth2 subpackage:
//
//	google := oauth2.NewGoogle(clientID, clientSecret, callbackURL, kit.HandleAssertion)
//	kit.AddProvider("google", google)
//
// Flows can also be driven directly, without the HTTP glue, by calling
// Service methods and acting on the returned Outcome.
package authkit
