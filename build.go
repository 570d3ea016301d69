//go:build ignore

// build.go - patentworld build script
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: build, test, clean, release

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	module  = "patentworld"
	binary  = "patentworld"
	mainPkg = "./cmd/patentworld"
)

// BuildContext holds configuration for the build process
type BuildContext struct {
	Verbose bool
	RootDir string
	DistDir string
}

// release platforms as GOOS/GOARCH
var platforms = []string{
	"linux/amd64",
	"linux/arm64",
	"darwin/arm64",
	"windows/amd64",
}

var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

func main() {
	target := flag.String("target", "build", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	rootDir, err := os.Getwd()
	if err != nil {
		printError(fmt.Sprintf("Failed to get current directory: %v", err))
		os.Exit(1)
	}
	if _, err := os.Stat(filepath.Join(rootDir, "go.mod")); err != nil {
		printError("Run build.go from the module root")
		os.Exit(1)
	}

	ctx := &BuildContext{
		Verbose: *verbose,
		RootDir: rootDir,
		DistDir: filepath.Join(rootDir, "dist"),
	}

	printHeader()
	startTime := time.Now()

	switch *target {
	case "build":
		err = buildBinary(ctx, runtime.GOOS, runtime.GOARCH)
	case "test":
		err = runTests(ctx)
	case "clean":
		err = clean(ctx)
	case "release":
		err = release(ctx)
	default:
		showHelp()
		os.Exit(1)
	}
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Completed in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "        patentworld - Build System         " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func printWarning(msg string) {
	fmt.Printf("%s[WARNING]%s %s\n", colorYellow, colorReset, msg)
}

// ldflags stamps the build information reported by `patentworld version`
func ldflags() string {
	pkg := module + "/pkg/contracts"
	return strings.Join([]string{
		"-s", "-w",
		fmt.Sprintf("-X %s.BuildTime=%s", pkg, time.Now().UTC().Format(time.RFC3339)),
		fmt.Sprintf("-X %s.GitCommit=%s", pkg, gitOutput("rev-parse", "--short", "HEAD")),
		fmt.Sprintf("-X %s.GitBranch=%s", pkg, gitOutput("rev-parse", "--abbrev-ref", "HEAD")),
	}, " ")
}

func gitOutput(args ...string) string {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

// Build the binary for one platform into dist/
func buildBinary(ctx *BuildContext, goos, goarch string) error {
	name := binary
	if goos != runtime.GOOS || goarch != runtime.GOARCH {
		name = fmt.Sprintf("%s-%s-%s", binary, goos, goarch)
	}
	if goos == "windows" {
		name += ".exe"
	}
	output := filepath.Join(ctx.DistDir, name)

	printInfo(fmt.Sprintf("Building %s for %s/%s...", name, goos, goarch))

	args := []string{"build", "-trimpath", "-ldflags", ldflags(), "-o", output, mainPkg}
	if ctx.Verbose {
		args = append([]string{"build", "-v"}, args[1:]...)
	}

	cmd := exec.Command("go", args...)
	cmd.Dir = ctx.RootDir
	// modernc.org/sqlite is pure Go, so every platform cross-compiles without cgo
	cmd.Env = append(os.Environ(), "GOOS="+goos, "GOARCH="+goarch, "CGO_ENABLED=0")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("build %s/%s failed: %w", goos, goarch, err)
	}

	if info, err := os.Stat(output); err == nil {
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", output, float64(info.Size())/1024/1024))
	}
	return nil
}

func runTests(ctx *BuildContext) error {
	printInfo("Running tests...")
	args := []string{"test", "-race", "./..."}
	if ctx.Verbose {
		args = append(args, "-v")
	}
	cmd := exec.Command("go", args...)
	cmd.Dir = ctx.RootDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tests failed: %w", err)
	}
	return nil
}

func clean(ctx *BuildContext) error {
	printInfo(fmt.Sprintf("Removing %s...", ctx.DistDir))
	if err := os.RemoveAll(ctx.DistDir); err != nil {
		return fmt.Errorf("failed to remove dist: %w", err)
	}
	return nil
}

// Build every release platform
func release(ctx *BuildContext) error {
	if gitOutput("status", "--porcelain") != "" {
		printWarning("Working tree has uncommitted changes")
	}
	for _, p := range platforms {
		goos, goarch, _ := strings.Cut(p, "/")
		if err := buildBinary(ctx, goos, goarch); err != nil {
			return err
		}
	}
	return nil
}

func showHelp() {
	fmt.Println("Usage: go run build.go [-target=TARGET] [-v]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  build    Build patentworld for this platform (default)")
	fmt.Println("  test     Run all tests with the race detector")
	fmt.Println("  clean    Remove dist/")
	fmt.Println("  release  Cross-compile for " + strings.Join(platforms, ", "))
}
