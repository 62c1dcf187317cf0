// Package drivers registers the database/sql drivers behind the SQL
// record sources (sqlite://, genji://, postgres://, duckdb://). Only the
// server binary imports it, so package tests never link the engines.
package drivers

// Ready makes the blank import in main explicit.
func Ready() {}
