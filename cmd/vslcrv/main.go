// Command vslcrv is the whole-program RISC-V64 compiler driver. It mirrors
// the teacher's main.go in shape — parse flags, read source, run the
// staged pipeline, write the result — but builds its CLI on cobra instead
// of hand-rolling an os.Args scanner, and adds `run`/`debug` subcommands
// that shell out to qemu-riscv64 (and gdb) the way original_source's
// compiler/mod.rs::main does.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vslcrv/internal/compile"
)

var (
	verbose bool
	outPath string
)

var log = logrus.New()

func main() {
	root := newRootCmd()
	root.AddCommand(newRunCmd(), newDebugCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vslcrv <source...>",
		Short:         "whole-program RISC-V64 compiler",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			elf, err := compileFiles(args)
			if err != nil {
				return err
			}
			dst := outPath
			if dst == "" {
				dst = "a.out"
			}
			return writeELF(elf, dst)
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "trace phase-boundary progress (lex/parse/resolve/unify/assemble)")
	cmd.PersistentFlags().StringVarP(&outPath, "out", "o", "", "output executable path (default a.out)")
	return cmd
}

// newRunCmd compiles source and immediately executes it under qemu-riscv64
// user-mode emulation, per spec §6's "debug sub-mode is a driver concern".
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <source>",
		Short: "compile and run under qemu-riscv64",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			path, err := compileToBuildDir(args[0])
			if err != nil {
				return err
			}
			return runUnderQemu(path, false)
		},
	}
}

// newDebugCmd is the same as run but launches qemu paused on a gdbstub and
// attaches gdb to it, grounded in original_source/src/compiler/mod.rs.
func newDebugCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "debug <source>",
		Short: "compile and debug under qemu-riscv64 + gdb",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			path, err := compileToBuildDir(args[0])
			if err != nil {
				return err
			}
			return runUnderQemu(path, true)
		},
	}
}

func setupLogging() {
	log.SetOutput(os.Stderr)
	logrus.SetOutput(os.Stderr)
	level := logrus.WarnLevel
	if verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)
	logrus.SetLevel(level)
}

// compileFiles reads every path and runs the pipeline over all of them
// together: a single file takes the ordinary single-source path, more than
// one goes through the concurrent multi-file loader (internal/frontend's
// errgroup-backed LoadFiles).
func compileFiles(paths []string) ([]byte, error) {
	srcs := make([]compile.Source, len(paths))
	for i, path := range paths {
		log.WithField("path", path).Debug("reading source")
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		srcs[i] = compile.Source{File: uint32(i), Name: path, Text: string(text)}
	}

	log.Debug("lowering to U-IR, resolving, unifying, assembling")
	var res *compile.Result
	var err error
	if len(srcs) == 1 {
		res, err = compile.Compile(srcs[0])
	} else {
		res, err = compile.CompileFiles(srcs)
	}
	if err != nil {
		return nil, err
	}
	log.WithField("bytes", len(res.ELF)).Debug("linked ELF image")
	return res.ELF, nil
}

func writeELF(elf []byte, path string) error {
	if err := os.WriteFile(path, elf, 0750); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	log.WithField("path", path).Debug("wrote executable")
	return nil
}

// compileToBuildDir compiles src and writes the executable under ./build,
// matching original_source/compiler/mod.rs::main's build/test layout.
func compileToBuildDir(src string) (string, error) {
	elf, err := compileFiles([]string{src})
	if err != nil {
		return "", err
	}
	dir := "build"
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, filepath.Base(src))
	if err := writeELF(elf, path); err != nil {
		return "", err
	}
	return path, nil
}

func runUnderQemu(path string, gdb bool) error {
	var qemu *exec.Cmd
	if gdb {
		qemu = exec.Command("qemu-riscv64", "-g", "1234", path)
	} else {
		qemu = exec.Command("qemu-riscv64", path)
	}
	qemu.Stdout = os.Stdout
	qemu.Stderr = os.Stderr
	qemu.Stdin = os.Stdin
	if err := qemu.Start(); err != nil {
		return fmt.Errorf("starting qemu-riscv64: %w", err)
	}

	if gdb {
		g := exec.Command("gdb", "-q", "-ex", "target remote :1234", path)
		g.Stdout, g.Stderr, g.Stdin = os.Stdout, os.Stderr, os.Stdin
		if err := g.Run(); err != nil {
			_ = qemu.Process.Kill()
			return fmt.Errorf("gdb: %w", err)
		}
	}

	if err := qemu.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			log.WithField("status", exitErr.ExitCode()).Warn("process exited non-zero")
			return nil
		}
		return err
	}
	return nil
}
