package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jarredhawkins/drl-lsp/internal/parser"
	"github.com/jarredhawkins/drl-lsp/internal/types"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrProblemsFound     = errors.New("problems found")
)

const (
	formatJSON        = "json"
	formatYAML        = "yaml"
	formatDiagnostics = "diagnostics"
)

func parseCmd() *cobra.Command {
	var format string
	var strict bool

	cmd := &cobra.Command{
		Use:   "parse [files...]",
		Short: "Parse DRL files and print the AST or problems",
		Long: `Parse DRL files the way the language server does.

Examples:
  drl-lsp parse rules.drl                 # AST and problems as JSON
  drl-lsp parse -f yaml rules.drl         # same as YAML
  drl-lsp parse -f diagnostics *.drl      # one line per problem
  cat rules.drl | drl-lsp parse -         # read from stdin
  drl-lsp parse --strict -f diagnostics x.drl  # exit non-zero on errors`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			opts := cfg.ParserOptions()
			opts.EnableIncrementalParsing = false
			return runParse(args, format, strict, &opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "output format (json, yaml, diagnostics)")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any error-severity problem is found")

	return cmd
}

func runParse(files []string, format string, strict bool, opts *parser.Options, stdin io.Reader, writer io.Writer) error {
	switch format {
	case formatJSON, formatYAML, formatDiagnostics:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	failed := 0
	for _, file := range files {
		text, err := readSource(file, stdin)
		if err != nil {
			return err
		}

		res := parser.Parse(text, opts)
		if err := writeResult(writer, file, format, res); err != nil {
			return err
		}
		for _, e := range res.Errors {
			if e.Severity == types.SeverityError {
				failed++
			}
		}
	}

	if strict && failed > 0 {
		return fmt.Errorf("%w: %d errors", ErrProblemsFound, failed)
	}
	return nil
}

func readSource(file string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file, err)
	}
	return string(data), nil
}

func writeResult(w io.Writer, file, format string, res *types.ParseResult) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("failed to encode %s: %w", file, err)
		}
		return enc.Close()
	case formatDiagnostics:
		for _, e := range res.Errors {
			start := e.Range.Start
			_, err := fmt.Fprintf(w, "%s:%d:%d: %s: %s [%s]\n",
				file, start.Line+1, start.Character+1, e.Severity, e.Message, e.Code)
			if err != nil {
				return err
			}
		}
		return nil
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("failed to encode %s: %w", file, err)
		}
		return nil
	}
}
