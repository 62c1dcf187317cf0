//go:build !test

// Heavy SQL engines are linked into the server binary unless it is built
// with -tags test. go test does not set that tag by itself.
package main

import "labmap/pkg/labs/drivers"

func init() {
	// Touch the package so its init functions register the SQL
	// record sources before the lab list is loaded.
	drivers.Ready()
}
