// Package logx wraps zerolog for moon.
//
// Console output is human readable with a short caller; file output is JSON.
// A Service can change level and sinks at runtime without rebuilding the
// loggers derived from it.
package logx
