// Package dispatch runs the command or script bound to a webhook definition.
//
// Inline commands are trimmed, rendered against the delivery's template
// namespace and passed as the final argument to the configured shell
// (default: sh -c). Scripts are read from disk, trimmed and rendered the same
// way, then written to a fresh temporary file with mode 0755 which is passed
// to the shell instead. The temporary file is removed on every exit path,
// including render and execution failures.
//
// A command succeeds when it exits with status 0; its trimmed stdout becomes
// the response body. Any other outcome is an *ExecError carrying the exit
// code, stdout and stderr (capped at 64KB).
//
// Timeout handling:
//   - Each webhook may set a timeout; otherwise the executor default applies.
//     Zero means the command may run indefinitely.
//   - When the timeout expires, SIGTERM is sent to the command's process group
//   - After a 5 second grace period, SIGKILL is sent if it is still running
//   - The result is an *ExecError with TimedOut set
//
// The executor never retries.
package dispatch
