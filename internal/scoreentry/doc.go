// Package scoreentry implements the edit flow of a single score cell.
package scoreentry
