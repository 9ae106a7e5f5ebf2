package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/xyproto/env/v2"
)

// cli.go implements the olusc subcommand interface, grounded on flapc's
// own cli.go (RunCLI dispatching to cmdBuild/cmdRun/cmdHelp by the
// first argument, with a CommandContext threading shared flags through).
//
//	olusc build <file.olus> [-o output]
//	olusc run <file.olus>
//	olusc help
//	olusc version

const versionString = "olusc 0.1.0"

// CommandContext holds flags shared across subcommands.
type CommandContext struct {
	Platform   Platform
	Verbose    bool
	OutputPath string
	HeapSize   uint64
}

// RunCLI is the CLI entry point; it dispatches on args[0].
func RunCLI(args []string, ctx *CommandContext) error {
	if len(args) == 0 {
		return cmdHelp()
	}

	switch args[0] {
	case "build":
		if len(args) < 2 {
			return fmt.Errorf("usage: olusc build <file.olus> [-o output]")
		}
		return cmdBuild(ctx, args[1:])

	case "run":
		if len(args) < 2 {
			return fmt.Errorf("usage: olusc run <file.olus>")
		}
		return cmdRun(ctx, args[1:])

	case "help", "--help", "-h":
		return cmdHelp()

	case "version", "--version", "-V":
		fmt.Println(versionString)
		return nil

	default:
		if strings.HasSuffix(args[0], ".olus") {
			return cmdBuild(ctx, args)
		}
		return fmt.Errorf("unknown command: %s\n\nrun 'olusc help' for usage", args[0])
	}
}

func compileFile(ctx *CommandContext, inputFile string) ([]byte, error) {
	src, err := os.ReadFile(inputFile)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", inputFile, err)
	}

	opts := CompileOptions{
		Platform: ctx.Platform,
		HeapSize: ctx.HeapSize,
	}
	if ctx.Verbose {
		opts.Trace = func(s Stage) {
			fmt.Fprintf(os.Stderr, "-> %s\n", s)
		}
	}

	return Compile(inputFile, string(src), opts)
}

// cmdBuild compiles a .olus source file to a standalone executable.
// Flag parsing follows flapc's own main.go (flag.String for "-o",
// flag.Parse, then the remaining positional arguments as input files),
// scoped to this subcommand's own FlagSet since "build"/"run" each take
// independent flags rather than one flat top-level set.
func cmdBuild(ctx *CommandContext, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	output := fs.String("o", "", "output executable filename")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: olusc build <file.olus> [-o output]")
	}
	inputFile := fs.Arg(0)

	outputPath := *output
	if outputPath == "" {
		outputPath = ctx.OutputPath
	}
	if outputPath == "" {
		outputPath = strings.TrimSuffix(filepath.Base(inputFile), ".olus")
	}

	image, err := compileFile(ctx, inputFile)
	if err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}

	if err := os.WriteFile(outputPath, image, 0o755); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}

	fmt.Printf("built: %s\n", outputPath)
	return nil
}

// cmdRun compiles a .olus source file to a temp executable and execs it
// immediately, mirroring flapc's own cmdRun (compile-to-/dev/shm-then-run).
func cmdRun(ctx *CommandContext, args []string) error {
	inputFile := args[0]

	image, err := compileFile(ctx, inputFile)
	if err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}

	tmpDir := "/dev/shm"
	if _, err := os.Stat(tmpDir); err != nil {
		tmpDir = os.TempDir()
	}
	baseName := strings.TrimSuffix(filepath.Base(inputFile), ".olus")
	tmpExec := filepath.Join(tmpDir, fmt.Sprintf("olusc_run_%s_%d", baseName, os.Getpid()))

	if err := os.WriteFile(tmpExec, image, 0o755); err != nil {
		return fmt.Errorf("writing temporary executable: %w", err)
	}
	defer os.Remove(tmpExec)

	cmd := exec.Command(tmpExec)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return fmt.Errorf("execution failed: %w", err)
	}
	return nil
}

func cmdHelp() error {
	fmt.Printf(`olusc - the Olus compiler (%s)

USAGE:
    olusc <command> [arguments]

COMMANDS:
    build <file.olus>   compile to a native executable
    run <file.olus>     compile and run immediately
    help                show this help message
    version             show version information

SHORTHAND:
    olusc file.olus     same as 'olusc build file.olus'

ENVIRONMENT:
    OLUSC_PLATFORM      target OS: "darwin" or "linux" (default: %s)
    OLUSC_HEAP_SIZE     bump heap size in bytes (default: %d)
    OLUSC_DEBUG         set to trace compilation stages to stderr
`, versionString, runtime.GOOS, defaultHeapSize)
	return nil
}

// hostPlatform maps the running host's GOOS to a Platform, the fallback
// used when OLUSC_PLATFORM is unset.
func hostPlatform() Platform {
	if runtime.GOOS == "darwin" {
		return Platform{OS: OSDarwin, Arch: ArchX86_64}
	}
	return Platform{OS: OSLinux, Arch: ArchX86_64}
}

// platformFromEnv resolves the target platform from OLUSC_PLATFORM,
// falling back to the host's own OS when unset or unrecognized.
func platformFromEnv() Platform {
	if s := env.Str("OLUSC_PLATFORM"); s != "" {
		if plat, err := ParsePlatform(s); err == nil {
			return plat
		}
	}
	return hostPlatform()
}
