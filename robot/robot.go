// Package robot invokes the external ontology toolchain that derives base
// files and metrics artifacts from raw ontology downloads.
package robot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Request describes one toolchain invocation.
type Request struct {
	// RawPath is the downloaded ontology file.
	RawPath string
	// BasePath is where the derived base ontology is written.
	BasePath string
	// MetricsPath is where the metrics artifact is written.
	MetricsPath string
	// BaseNamespaces are the IRI namespaces native to the ontology.
	BaseNamespaces []string
	// MakeBase derives a base subset; when false the raw file already is a
	// base artifact and is used as-is.
	MakeBase bool
	// ExtraPrefixes are additional CURIE prefixes declared for the run.
	ExtraPrefixes map[string]string
	// Opts are extra command-line options appended verbatim.
	Opts string
}

// Gateway produces a base ontology file and a metrics artifact from a raw
// downloaded file.
type Gateway interface {
	PrepareOntology(ctx context.Context, req Request) error
}

// ExecGateway runs the toolchain as a subprocess.
type ExecGateway struct {
	command string
	logger  *slog.Logger
}

// NewExecGateway creates a gateway invoking the given toolchain executable.
func NewExecGateway(command string, logger *slog.Logger) *ExecGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecGateway{command: command, logger: logger}
}

// PrepareOntology derives the base file and metrics artifact. When MakeBase
// is false the raw file is copied to the base path and only measured.
func (g *ExecGateway) PrepareOntology(ctx context.Context, req Request) error {
	if req.MakeBase {
		if err := g.run(ctx, g.baseArgs(req)); err != nil {
			return fmt.Errorf("base generation failed: %w", err)
		}
	} else {
		if err := copyFile(req.RawPath, req.BasePath); err != nil {
			return fmt.Errorf("failed to stage base file: %w", err)
		}
	}

	if err := g.run(ctx, g.measureArgs(req)); err != nil {
		return fmt.Errorf("metrics generation failed: %w", err)
	}
	return nil
}

func (g *ExecGateway) baseArgs(req Request) []string {
	args := []string{"merge", "--input", req.RawPath}
	args = append(args, prefixArgs(req.ExtraPrefixes)...)
	args = append(args, "remove")
	for _, ns := range req.BaseNamespaces {
		args = append(args, "--base-iri", ns)
	}
	args = append(args,
		"--axioms", "external",
		"--preserve-structure", "false",
		"--trim", "false",
		"--output", req.BasePath)
	if req.Opts != "" {
		args = append(args, strings.Fields(req.Opts)...)
	}
	return args
}

func (g *ExecGateway) measureArgs(req Request) []string {
	args := []string{"measure", "--input", req.RawPath}
	args = append(args, prefixArgs(req.ExtraPrefixes)...)
	args = append(args,
		"--metrics", "extended-reasoner",
		"--format", "yaml",
		"--output", req.MetricsPath)
	if req.Opts != "" {
		args = append(args, strings.Fields(req.Opts)...)
	}
	return args
}

func prefixArgs(prefixes map[string]string) []string {
	keys := make([]string, 0, len(prefixes))
	for k := range prefixes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var args []string
	for _, k := range keys {
		args = append(args, "--prefix", fmt.Sprintf("%s: %s", k, prefixes[k]))
	}
	return args
}

func (g *ExecGateway) run(ctx context.Context, args []string) error {
	g.logger.Debug("Running toolchain", slog.String("command", g.command), slog.String("args", strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, g.command, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", g.command, args[0], err, strings.TrimSpace(string(output)))
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
