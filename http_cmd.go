// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/524D/rtalign/internal/httpapi"

	"github.com/spf13/cobra"
)

func newHTTPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve alignments over HTTP",
		Long: `Http starts an HTTP server. POST /align takes an input payload as request
body and responds with the output payload. GET /healthz reports whether the
server is up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			aligner, err := a.newAligner()
			if err != nil {
				return err
			}
			hc := a.cfg.HTTP
			srv := &http.Server{
				Addr: hc.Addr,
				Handler: httpapi.NewRouter(aligner, httpapi.Options{
					MaxBody:     hc.MaxBody,
					Timeout:     hc.Timeout,
					CORSOrigins: hc.CORSOrigins,
					Logger:      a.logger(),
				}),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errc := make(chan error, 1)
			go func() {
				a.infof("Listening on %s\n", hc.Addr)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "listen `address` (default from config, 127.0.0.1:8080)")
	cmd.Flags().StringSlice("cors-origin", nil, "allowed CORS `origin`, may be repeated")
	bindFlags(a.v, cmd.Flags(), map[string]string{
		"http.addr":         "addr",
		"http.cors_origins": "cors-origin",
	})
	return cmd
}
