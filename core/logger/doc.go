// Package logger is a structured event log for shell sessions.
//
// Events are written as newline delimited JSON objects, one per line, and can
// be summarized with a Report.
package logger
