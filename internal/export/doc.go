// Package export writes session score sheets to spreadsheet files.
package export
