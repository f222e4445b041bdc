package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"taskhub/internal/exitcode"
	"taskhub/internal/service"
	"taskhub/internal/tasklist"
)

// report prints err to errOut and returns the matching exit code.
func report(errOut io.Writer, err error) int {
	prefix := ""
	var operr *tasklist.OpError
	if errors.As(err, &operr) {
		prefix = string(operr.Op) + " failed: "
	}

	var verr *service.ValidationError
	var rerr *RefError
	switch {
	case errors.As(err, &rerr):
		fmt.Fprintf(errOut, "error: %v\n", rerr)
		return exitcode.UserError
	case errors.As(err, &verr):
		fmt.Fprintf(errOut, "error: %s%v\n", prefix, verr)
		return exitcode.UserError
	case errors.Is(err, service.ErrNotFound):
		fmt.Fprintf(errOut, "error: %stask not found\n", prefix)
		return exitcode.UserError
	case errors.Is(err, service.ErrInvalidCredentials):
		fmt.Fprintln(errOut, "error: invalid credentials")
		return exitcode.AuthError
	case errors.Is(err, service.ErrUnauthenticated):
		fmt.Fprintln(errOut, "error: session ended (run: taskhub login)")
		return exitcode.AuthError
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(errOut, "error: cancelled")
		return exitcode.BackendError
	}

	if operr != nil {
		fmt.Fprintf(errOut, "error: %v\n", operr)
	} else {
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
	}
	return exitcode.BackendError
}
