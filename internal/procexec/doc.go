// Package procexec runs external tools for the pipeline collaborators.
//
// Runner streams stdout and stderr line by line to callbacks, binds the child
// process to a cancellation.Token for the lifetime of the call, and polls the
// token and the optional per-call deadline after every line. A process that
// stays silent is only interrupted by an explicit token cancel; its deadline is
// not evaluated until it prints again.
package procexec
