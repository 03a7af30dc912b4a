package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/lewisedginton/chat_console/pkg/logger"
)

// ShutdownTimeout bounds the graceful closer returned by ListenHTTP.
const ShutdownTimeout = 10 * time.Second

// ListenHTTP binds srv.Addr and serves srv in the background.
// It returns an error channel, a force closer function, a graceful closer function, and any setup error.
// The error channel receives nil once the server has been closed by either closer.
//
// Usage:
//
//	errChan, closer, gracefulCloser, err := ListenHTTP(srv, log)
//	if err != nil {
//		return err
//	}
//	defer gracefulCloser()
func ListenHTTP(srv *http.Server, log logger.Logger) (chan error, func(), func(), error) {
	lis, err := net.Listen("tcp", srv.Addr) //nolint:noctx // server manages listener lifecycle
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}

	errorChannel := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", logger.StringField("address", lis.Addr().String()))
		err := srv.Serve(lis)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errorChannel <- err
		close(errorChannel)
	}()

	gracefulCloser := func() {
		log.Info("Received graceful shutdown signal")
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("HTTP server shutdown incomplete", logger.ErrorField(err))
		}
	}
	closer := func() {
		log.Info("Received shutdown signal")
		_ = srv.Close()
	}
	return errorChannel, closer, gracefulCloser, nil
}
