// Package logs reads back the CLI's own log file: the last N lines, then
// optionally new lines as they are written. Lines can be narrowed to a
// single submission so an operator can follow one watch among several.
package logs
