// Package source defines the contract shared by all email and calendar
// backends: the RawRecord envelope they produce, the Source interface
// they implement, and the classification of backend failures into the
// error kinds the rest of the application understands.
//
// Adapters are stateless apart from an authenticated connection handle.
// They borrow credentials from the auth manager per call and never store
// tokens themselves.
package source
