// Command calibrate renders a job onto a local template so field positions
// can be checked on paper before a template goes live.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/tallpine/kioskdocs/internal/logging"
	"github.com/tallpine/kioskdocs/internal/mapping"
	"github.com/tallpine/kioskdocs/internal/models"
	"github.com/tallpine/kioskdocs/internal/render"
)

func main() {
	opts, err := loadOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := logging.Setup(logging.Config{Level: opts.LogLevel, Format: "console"})

	if err := run(opts, logger); err != nil {
		logger.Error("Calibration render failed.", "error", err)
		os.Exit(1)
	}
}

func run(opts *options, logger *slog.Logger) error {
	template, err := os.ReadFile(opts.Template)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}
	job, err := readJob(opts.JobFile)
	if err != nil {
		return err
	}

	var layouts mapping.Layouts
	if opts.Layout != "" {
		if layouts, err = mapping.LoadLayouts(opts.Layout); err != nil {
			return err
		}
	}
	mapper := mapping.New(mapping.Business{}, layouts)
	renderer := render.NewRenderer(render.NewPDFCPUEngine(), logger)

	inv, err := renderer.Inspect(template)
	if err != nil {
		return err
	}
	strategy := render.SelectStrategy(opts.Mode, inv,
		mapper.Named(job, opts.DocType), mapper.Coordinates(job, opts.DocType))

	res, err := renderer.RenderInspected(template, inv, strategy, render.Options{Calibrate: opts.Calibrate})
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.Out, res.Bytes, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.Out, err)
	}

	logger.Info("Wrote calibration render.",
		"out", opts.Out,
		"docType", opts.DocType,
		"strategy", strategy.Name(),
		"pageCount", inv.PageCount,
		"fieldMisses", res.Diagnostics.Count(),
	)
	return nil
}

func readJob(path string) (*models.Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	var job models.Job
	if err := json.Unmarshal(b, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}
	return &job, nil
}
