// Package undo records completed renames so they can be reversed, either as
// an in memory log or as a standalone shell/batch script.
package undo

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"
)

// Record reverses one rename: moving From back to To restores the original
// name.
type Record struct {
	From string // the renamed (current) path
	To   string // the original path
}

// Sink receives one Record per successful rename, in execution order.  A
// Sink must have persisted the record by the time Record returns.
type Sink interface {
	Record(Record) error
}

// Log is an append only in memory Sink.
type Log struct {
	Records []Record
}

// Record implements Sink.
func (l *Log) Record(r Record) error {
	l.Records = append(l.Records, r)
	return nil
}

// Reversed returns the records newest first, the order to replay them in.
func (l *Log) Reversed() []Record {
	out := make([]Record, len(l.Records))
	for i, r := range l.Records {
		out[len(out)-1-i] = r
	}
	return out
}

type multiSink []Sink

func (m multiSink) Record(r Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiSink writes every record to all sinks.  nil sinks are dropped; if none
// remain MultiSink returns nil.
func MultiSink(sinks ...Sink) Sink {
	var m multiSink
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	if len(m) == 0 {
		return nil
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

// Format is the syntax of an undo script.
type Format int

// Script formats
const (
	Shell Format = iota // POSIX sh
	Batch               // Windows cmd.exe
)

// DefaultFormat is the native script format of the running platform.
func DefaultFormat() Format {
	if runtime.GOOS == "windows" {
		return Batch
	}
	return Shell
}

// FormatFromString parses "sh" or "bat".  The empty string is DefaultFormat.
func FormatFromString(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "":
		return DefaultFormat(), nil
	case "sh", "shell":
		return Shell, nil
	case "bat", "batch", "cmd":
		return Batch, nil
	}
	return Shell, fmt.Errorf("unknown undo script format: %q", s)
}

func (f Format) String() string {
	if f == Batch {
		return "bat"
	}
	return "sh"
}

// SuggestedName is the file name to offer for an undo script.
func SuggestedName(f Format) string {
	return "epnamer-undo." + f.String()
}

func (f Format) newline() string {
	if f == Batch {
		return "\r\n"
	}
	return "\n"
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func batchQuote(s string) string {
	return `"` + strings.ReplaceAll(s, "%", "%%") + `"`
}

// Command returns the script line that reverses r.
func Command(f Format, r Record) string {
	if f == Batch {
		return fmt.Sprintf("move /-Y %s %s || exit /b 1", batchQuote(r.From), batchQuote(r.To))
	}
	return fmt.Sprintf("mv -n -- %s %s", shellQuote(r.From), shellQuote(r.To))
}

func header(f Format, now time.Time) []string {
	stamp := now.Format(time.RFC3339)
	if f == Batch {
		return []string{
			"@echo off",
			"rem Undo script written by epnamer at " + stamp,
			"rem Run it to restore the original file names.",
		}
	}
	return []string{
		"#!/bin/sh",
		"# Undo script written by epnamer at " + stamp,
		"# Run it to restore the original file names.",
		"set -e",
	}
}

type syncer interface {
	Sync() error
}

// ScriptWriter is a Sink writing an executable undo script.  Every record is
// written (and synced, when the writer supports it) before Record returns so
// an interrupted run leaves a script covering every rename done.
type ScriptWriter struct {
	w      io.Writer
	format Format
	count  int
}

// NewScriptWriter writes the script header to w and returns the Sink.
func NewScriptWriter(w io.Writer, f Format) (*ScriptWriter, error) {
	s := &ScriptWriter{w: w, format: f}
	for _, line := range header(f, time.Now()) {
		if err := s.writeLine(line); err != nil {
			return nil, err
		}
	}
	return s, s.sync()
}

func (s *ScriptWriter) writeLine(line string) error {
	_, err := io.WriteString(s.w, line+s.format.newline())
	if err != nil {
		return fmt.Errorf("error writing undo script: %w", err)
	}
	return nil
}

func (s *ScriptWriter) sync() error {
	if f, ok := s.w.(syncer); ok {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("error syncing undo script: %w", err)
		}
	}
	return nil
}

// Record implements Sink.
func (s *ScriptWriter) Record(r Record) error {
	if err := s.writeLine(Command(s.format, r)); err != nil {
		return err
	}
	s.count++
	return s.sync()
}

// Count returns the number of commands written.
func (s *ScriptWriter) Count() int {
	return s.count
}
