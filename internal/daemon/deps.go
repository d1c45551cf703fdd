// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"net"
	"net/http"

	"github.com/rs/zerolog"
)

// Deps are the collaborators of the daemon manager.
type Deps struct {
	Logger  zerolog.Logger
	Handler http.Handler

	// Listener overrides ListenAddr; tests pass a 127.0.0.1:0 listener.
	Listener net.Listener
}

// Validate checks that required dependencies are present.
func (d Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.Handler == nil {
		return ErrMissingHandler
	}
	return nil
}
