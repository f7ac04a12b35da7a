// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/524D/rtalign/internal/align"
	"github.com/524D/rtalign/internal/framing"

	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Align payloads framed by marker lines on stdin",
		Long: `Serve reads payloads from stdin. Lines containing "start processing" are
ignored, other lines are collected until a line containing "end processing".
The collected payload is aligned and the output payload is written to stdout,
followed by a line "stop". A payload that can't be aligned is answered with
{"error": "..."} instead. The markers can be changed in the framing section
of the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			aligner, err := a.newAligner()
			if err != nil {
				return err
			}
			loop, err := framing.New(a.cfg.Framing.Sentinels(), a.alignHandler(aligner),
				a.logger())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err = loop.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			a.infof("Processed %d payloads\n", loop.Processed())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// alignHandler adapts the aligner to the framing protocol
func (a *app) alignHandler(aligner *align.Aligner) framing.Handler {
	return func(payload []byte) ([]byte, error) {
		in, err := align.ParseInput(payload)
		if err != nil {
			return nil, err
		}
		res, err := aligner.Align(in)
		if err != nil {
			return nil, err
		}
		if a.debug {
			debugDumpDiagnostics(a.stderr, res)
		}
		var buf bytes.Buffer
		if err := res.Output.WriteJSON(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}
