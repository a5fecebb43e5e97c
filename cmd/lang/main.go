// Command lang is a minimal driver over pkg/script: given a source file
// path, it runs the script and reports diagnostics on stderr. It is not
// a REPL, a bytecode disassembler, or a general-purpose CLI; those are
// left to whatever embeds pkg/script.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/funvibe/scriptlang/internal/config"
	"github.com/funvibe/scriptlang/pkg/script"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("lang", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config overriding GC/stack/stdlib defaults")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: lang [-config path] <script>")
		return 2
	}

	path := fs.Arg(0)
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lang: %s\n", err)
		return 1
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lang: %s\n", err)
			return 1
		}
		cfg = loaded
	}

	status, err := script.Run(string(source), script.Options{Path: path, Config: cfg, Stdout: os.Stdout})
	if err == nil {
		return 0
	}

	switch {
	case status.TypeErrors != nil && !status.TypeErrors.Empty():
		for _, d := range status.TypeErrors.Items() {
			fmt.Fprintln(os.Stderr, d.Error())
		}
	case status.CompileErrors != nil && !status.CompileErrors.Empty():
		for _, d := range status.CompileErrors.Items() {
			fmt.Fprintln(os.Stderr, d.Error())
		}
	case status.RuntimeError != nil:
		fmt.Fprintln(os.Stderr, status.RuntimeError.Error())
	default:
		fmt.Fprintln(os.Stderr, err)
	}
	return 1
}
