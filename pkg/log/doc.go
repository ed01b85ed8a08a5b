// Package log provides the global zerolog logger for Carve services.
package log
