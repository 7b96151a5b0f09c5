// Package config loads, normalizes, and validates scoredesk configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SCOREDESK_API_TOKEN. The Config type centralizes the backend connection,
// submission watch timing, local cache and logging knobs so the CLI resolves
// them in one pass.
package config
