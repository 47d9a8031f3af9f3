// Package preflight provides readiness checks for the external tools,
// directories, models and translation provider subgen depends on.
//
// The CLI "subgen doctor" command runs every check and renders the results.
// Watch mode runs RunAll once before it starts so a misconfigured inbox fails
// fast instead of on the first file.
package preflight
