// Package exitcode holds the process exit statuses of taskhub.
package exitcode

const (
	Success = 0

	// UserError covers rejected input: bad flags, invalid fields, unknown
	// task references and tasks the server no longer has.
	UserError = 1

	// AuthError means there is no usable session, or the credentials were
	// refused. Running "taskhub login" is the fix.
	AuthError = 2

	// BackendError covers transport failures, unexpected server replies
	// and cancelled operations.
	BackendError = 3
)
