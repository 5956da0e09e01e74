// Package database provides the connection to the SQLite database and manages
// the shared schema versions table. This package is a generic utility; the
// tables themselves belong to the application packages and are injected as
// migrations at startup.
package database
