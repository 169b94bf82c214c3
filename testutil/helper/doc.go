// Package helper provides test doubles shared by the package tests: a slog handler spy,
// metrics and tracing collector spies, and a Broker Port publisher spy.
package helper
