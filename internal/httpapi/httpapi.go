// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

// Package httpapi exposes the aligner over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/524D/rtalign/internal/align"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Options of the HTTP transport
type Options struct {
	MaxBody     int64         // Max request body size in bytes
	Timeout     time.Duration // Per request timeout, 0 for none
	CORSOrigins []string      // Allowed origins, none disables CORS handling
	Logger      *log.Logger   // Request log, nil for none
}

// NewRouter returns the handler serving POST /align and GET /healthz
func NewRouter(a *align.Aligner, opt Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	if opt.Logger != nil {
		r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  opt.Logger,
			NoColor: true,
		}))
	}
	r.Use(middleware.Recoverer)
	if opt.Timeout > 0 {
		r.Use(middleware.Timeout(opt.Timeout))
	}
	if len(opt.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opt.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	s := &server{aligner: a, opt: opt}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/align", s.handleAlign)
	return r
}

type server struct {
	aligner *align.Aligner
	opt     Options
}

func (s *server) handleAlign(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if s.opt.MaxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, s.opt.MaxBody)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErr(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		s.writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	in, err := align.ParseInput(data)
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.aligner.Align(in)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, align.ErrInvalidPayload) {
			status = http.StatusBadRequest
		}
		s.writeErr(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res.Output)
}

// writeJSON sends v as the response body. The status is already out when
// encoding fails, so the failure can only be logged.
func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && s.opt.Logger != nil {
		s.opt.Logger.Printf("writing %d response: %v", status, err)
	}
}

type errResp struct {
	Error string `json:"error"`
}

func (s *server) writeErr(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errResp{Error: msg})
}
