// Copyright 2026 The cvmquery Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errorhandler tracks the status of the most recent query-session
// operation and optionally logs warnings to a file.
package errorhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Error is a failure recorded on a Handler.
type Error struct {
	Status  Status
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// IsWarning reports whether err carries a warning status.
func IsWarning(err error) bool {
	var handlerErr *Error
	return errors.As(err, &handlerErr) && handlerErr.Status == StatusWarning
}

// IsFatal reports whether err carries an error status.  Errors that did not
// come from a Handler are also fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var handlerErr *Error
	if errors.As(err, &handlerErr) {
		return handlerErr.Status == StatusError
	}
	return true
}

type Handler struct {
	status      Status
	message     string
	logFilename string
	logFile     *os.File
	logger      *slog.Logger
}

func New() *Handler {
	return &Handler{}
}

func (h *Handler) Status() Status {
	return h.status
}

func (h *Handler) Message() string {
	return h.message
}

func (h *Handler) ResetStatus() {
	h.status = StatusOK
	h.message = ""
}

// SetLogger sends log records to logger.  It replaces any log file set with
// SetLogFilename.
func (h *Handler) SetLogger(logger *slog.Logger) error {
	if err := h.closeLog(); err != nil {
		return err
	}
	h.logger = logger
	return nil
}

// SetLogFilename appends log records to the named file.
func (h *Handler) SetLogFilename(name string) error {
	if err := h.closeLog(); err != nil {
		return err
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return h.Error("Could not open log file '%s': %s", name, err)
	}
	h.logFilename = name
	h.logFile = f
	h.logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return nil
}

func (h *Handler) LogFilename() string {
	return h.logFilename
}

// Log writes an informational message to the log, if any.  The status is
// left alone.
func (h *Handler) Log(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Info(msg, args...)
	}
}

// Warning records a warning and returns it as an error.
func (h *Handler) Warning(format string, args ...any) error {
	return h.record(StatusWarning, fmt.Sprintf(format, args...))
}

// Error records an error and returns it.
func (h *Handler) Error(format string, args ...any) error {
	return h.record(StatusError, fmt.Sprintf(format, args...))
}

func (h *Handler) record(status Status, message string) *Error {
	h.status = status
	h.message = message
	if h.logger != nil {
		level := slog.LevelWarn
		if status == StatusError {
			level = slog.LevelError
		}
		h.logger.Log(context.Background(), level, message)
	}
	return &Error{Status: status, Message: message}
}

func (h *Handler) closeLog() error {
	h.logger = nil
	h.logFilename = ""
	if h.logFile == nil {
		return nil
	}
	err := h.logFile.Close()
	h.logFile = nil
	return err
}

// Close closes the log file.  It is safe to call more than once.
func (h *Handler) Close() error {
	return h.closeLog()
}
