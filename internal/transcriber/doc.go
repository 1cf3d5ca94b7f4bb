// Package transcriber ties the library, job registry, capability prober,
// and speed model together behind one facade for the HTTP and CLI layers.
package transcriber
