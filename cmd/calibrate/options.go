package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tallpine/kioskdocs/internal/models"
	"github.com/tallpine/kioskdocs/internal/render"
)

const envPrefix = "KIOSKDOCS"

// options is the calibrate command line, after flags and KIOSKDOCS_* env vars
// have been merged.
type options struct {
	Template  string
	JobFile   string
	DocType   models.DocumentType
	Out       string
	Mode      render.Mode
	Layout    string
	Calibrate bool
	LogLevel  string
}

func loadOptions(args []string) (*options, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := pflag.NewFlagSet("calibrate", pflag.ContinueOnError)
	fs.String("template", "", "Path to the blank PDF template")
	fs.String("job", "", "Path to a job JSON file")
	fs.String("type", string(models.DocProofOfSex), "Document type: PWD-535 or WRD")
	fs.String("out", "", "Output PDF path (default <label>_calibration.pdf)")
	fs.String("mode", string(render.ModeCoordinate), "Render mode: auto, named or coordinate")
	fs.String("layout", "", "Optional layout YAML with position overrides")
	fs.Bool("calibrate", true, "Draw guide boxes around every coordinate entry")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of calibrate:\n\n")
		fmt.Fprintf(os.Stderr, "Renders a job onto a local template to check field positions.\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEvery flag can also be set as %s_<FLAG>, e.g. %s_TEMPLATE.\n", envPrefix, envPrefix)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	docType, err := models.ParseDocumentType(v.GetString("type"))
	if err != nil {
		return nil, err
	}
	mode, err := render.ParseMode(v.GetString("mode"))
	if err != nil {
		return nil, err
	}

	opts := &options{
		Template:  v.GetString("template"),
		JobFile:   v.GetString("job"),
		DocType:   docType,
		Out:       v.GetString("out"),
		Mode:      mode,
		Layout:    v.GetString("layout"),
		Calibrate: v.GetBool("calibrate"),
		LogLevel:  v.GetString("log-level"),
	}
	if opts.Template == "" {
		return nil, errors.New("--template is required")
	}
	if opts.JobFile == "" {
		return nil, errors.New("--job is required")
	}
	if opts.Out == "" {
		opts.Out = docType.Label() + "_calibration.pdf"
	}
	return opts, nil
}
