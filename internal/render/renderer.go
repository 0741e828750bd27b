// Package render applies mapping output to PDF templates.
package render

import (
	"fmt"
	"log/slog"
)

// Options control a single render.
type Options struct {
	// Calibrate draws guide boxes around every coordinate entry. Output
	// rendered with Calibrate set must never be stored as a compliance document.
	Calibrate bool
}

// Result is the finished document plus what happened while producing it.
type Result struct {
	Bytes       []byte
	DataURL     string
	Diagnostics Diagnostics
}

// Renderer validates templates and runs strategies against them.
type Renderer struct {
	engine Engine
	logger *slog.Logger
}

// NewRenderer returns a Renderer backed by e. A nil logger uses slog.Default.
func NewRenderer(e Engine, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{engine: e, logger: logger}
}

// Inspect validates a template and lists its form fields.
func (r *Renderer) Inspect(template []byte) (FieldInventory, error) {
	if err := CheckHeader(template); err != nil {
		return FieldInventory{}, err
	}
	inv, err := r.engine.Inspect(template)
	if err != nil {
		return FieldInventory{}, &TemplateLoadError{Err: err}
	}
	return inv, nil
}

// Render applies s to template. Header and parse failures are returned as
// *TemplateInvalidError and *TemplateLoadError; field misses are not errors
// and come back in Result.Diagnostics.
func (r *Renderer) Render(template []byte, s Strategy, opts Options) (*Result, error) {
	inv, err := r.Inspect(template)
	if err != nil {
		return nil, err
	}
	return r.RenderInspected(template, inv, s, opts)
}

// RenderInspected is Render for a template that has already been inspected.
func (r *Renderer) RenderInspected(template []byte, inv FieldInventory, s Strategy, opts Options) (*Result, error) {
	logCtx := r.logger.With("strategy", s.Name(), "pageCount", inv.PageCount)

	out, diag, err := s.Apply(r.engine, template, inv)
	if err != nil {
		logCtx.Error("Render failed.", "error", err)
		return nil, err
	}
	for _, m := range diag.Misses {
		logCtx.Warn("Field not written.", "field", m.Field, "reason", m.Reason, "detail", m.Detail)
	}

	if opts.Calibrate {
		cs, ok := s.(CoordinateStrategy)
		if !ok {
			logCtx.Warn("Calibration overlay only applies to coordinate rendering; skipping.")
		} else {
			out, err = r.engine.Overlay(out, calibrationBoxes(cs.Draws), true)
			if err != nil {
				return nil, fmt.Errorf("failed to draw calibration overlay: %w", err)
			}
		}
	}

	if diag.Count() > 0 {
		logCtx.Warn("Rendered with field misses.", "misses", diag.Count(), "written", diag.Written)
	} else {
		logCtx.Debug("Rendered cleanly.", "written", diag.Written)
	}
	return &Result{Bytes: out, DataURL: DataURL(out), Diagnostics: diag}, nil
}
