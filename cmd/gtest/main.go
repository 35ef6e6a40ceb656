// gtest compiles every sample program with smolc, runs the binaries and
// compares exit status, output and generated assembly to golden files.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

// Golden is the recorded behavior of one source file.
type Golden struct {
	Hash     string     `json:"hash"`
	Compile  Execution  `json:"compile"`
	Assembly string     `json:"assembly,omitempty"`
	Run      *Execution `json:"run,omitempty"`
}

type FileTestResult struct {
	File     string  `json:"file"`
	Status   string  `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message  string  `json:"message,omitempty"`
	Diff     string  `json:"diff,omitempty"`
	Expected *Golden `json:"expected,omitempty"`
	Actual   *Golden `json:"actual,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	compiler       = flag.String("compiler", "./smolc", "Path to the compiler to test.")
	compilerArgs   = flag.String("compiler-args", "", "Extra arguments for the compiler (space-separated).")
	generateGolden = flag.String("generate-golden", "", "Generate the golden .json file for a given source file.")
	update         = flag.Bool("update", false, "Rewrite the golden files of every test file instead of comparing.")
	testFiles      = flag.String("test-files", "tests/*.sm", "Glob pattern(s) for files to test (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each command execution.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "gtest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)
	setupInterruptHandler(tempDir)

	if *generateGolden != "" {
		if err := writeGolden(*generateGolden, tempDir); err != nil {
			log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
		}
		return
	}

	if !runTestSuite(tempDir) {
		os.RemoveAll(tempDir)
		os.Exit(1)
	}
}

// setupInterruptHandler is used to clean up on CTRL+C
func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled. Cleaning up...\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func goldenPath(sourceFile string) string {
	name := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, name)
	}
	return filepath.Join(filepath.Dir(sourceFile), name)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func writeGolden(sourceFile, tempDir string) error {
	fileHash, err := hashFile(sourceFile)
	if err != nil {
		return fmt.Errorf("could not hash source file %s: %w", sourceFile, err)
	}
	golden := compileAndRun(sourceFile, tempDir, fileHash)

	data, err := json.MarshalIndent(golden, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal golden data: %w", err)
	}
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			return err
		}
	}
	path := goldenPath(sourceFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file %s: %w", path, err)
	}
	log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, path)
	return nil
}

func runTestSuite(tempDir string) bool {
	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return true
	}

	tasks := make(chan string, len(files))
	results := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < max(*jobs, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				results <- testFile(file, tempDir)
			}
		}()
	}

	// Files with identical content are only tested once.
	seen := make(map[string]string)
	for _, file := range files {
		fileHash, err := hashFile(file)
		if err != nil {
			results <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if original, ok := seen[fileHash]; ok {
			results <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", original)}
			continue
		}
		seen[fileHash] = file
		tasks <- file
	}
	close(tasks)
	wg.Wait()
	close(results)

	var all []*FileTestResult
	for r := range results {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].File < all[j].File })

	printSummary(all)
	writeJSONReport(all)
	for _, r := range all {
		if r.Status == "FAIL" || r.Status == "ERROR" {
			return false
		}
	}
	return true
}

func testFile(file, tempDir string) *FileTestResult {
	if *update {
		if err := writeGolden(file, tempDir); err != nil {
			return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
		}
		return &FileTestResult{File: file, Status: "PASS", Message: "Golden file updated"}
	}

	data, err := os.ReadFile(goldenPath(file))
	if os.IsNotExist(err) {
		return &FileTestResult{File: file, Status: "SKIP", Message: "Cannot test without a corresponding .json golden file"}
	}
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not read golden file: %v", err)}
	}
	var expected Golden
	if err := json.Unmarshal(data, &expected); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file: %v", err)}
	}

	fileHash, err := hashFile(file)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
	}
	actual := compileAndRun(file, tempDir, fileHash)
	return compareResults(file, &expected, actual)
}

// compareResults checks the compile status, the assembly and the run of
// actual against the golden expectation.
func compareResults(file string, expected, actual *Golden) *FileTestResult {
	var diffs strings.Builder
	result := &FileTestResult{File: file, Expected: expected, Actual: actual}

	if expected.Compile.ExitCode != actual.Compile.ExitCode {
		fmt.Fprintf(&diffs, "Compile exit code mismatch:\n  - Expected: %d\n  - Actual:   %d\n%s", expected.Compile.ExitCode, actual.Compile.ExitCode, actual.Compile.Stderr)
	}
	if d := cmp.Diff(expected.Assembly, actual.Assembly); d != "" {
		fmt.Fprintf(&diffs, "Assembly mismatch (-expected +actual):\n%s", d)
	}

	switch {
	case expected.Run == nil && actual.Run != nil:
		diffs.WriteString("Program ran but the golden file expects a compile failure.\n")
	case expected.Run != nil && actual.Run == nil:
		diffs.WriteString("Program did not run but the golden file expects it to.\n")
	case expected.Run != nil:
		if expected.Run.ExitCode != actual.Run.ExitCode {
			fmt.Fprintf(&diffs, "Exit code mismatch:\n  - Expected: %d\n  - Actual:   %d\n", expected.Run.ExitCode, actual.Run.ExitCode)
		}
		if d := cmp.Diff(expected.Run.Stdout, actual.Run.Stdout); d != "" {
			fmt.Fprintf(&diffs, "STDOUT mismatch:\n%s", d)
		}
	}

	if diffs.Len() > 0 {
		result.Status, result.Message, result.Diff = "FAIL", "Compiler or program output differs from the golden file", diffs.String()
		return result
	}
	result.Status, result.Message = "PASS", "Matches the golden file"
	if expected.Run == nil {
		result.Message = "Compile failure matches the golden file"
	}
	return result
}

// executeCommand runs a command with a timeout and captures its output
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	start := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	err := cmd.Run()
	res := Execution{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(start)}

	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut, res.ExitCode = true, -1
	} else if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -2
			res.Stderr += "\nExecution error: " + err.Error()
		}
	}
	return res
}

// compileAndRun builds sourceFile twice: once with -S for the assembly and
// once to a binary that is then executed.
func compileAndRun(sourceFile, tempDir, fileHash string) *Golden {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	extra := strings.Fields(*compilerArgs)
	asmPath := filepath.Join(tempDir, fileHash+".s")
	binPath := filepath.Join(tempDir, fileHash)
	golden := &Golden{Hash: fileHash}

	asmArgs := append(append([]string{"-S", "-o", asmPath}, extra...), sourceFile)
	golden.Compile = executeCommand(ctx, *compiler, asmArgs...)
	golden.Compile.Stdout = ""
	if golden.Compile.ExitCode != 0 || golden.Compile.TimedOut {
		return golden
	}
	if asm, err := os.ReadFile(asmPath); err == nil {
		golden.Assembly = string(asm)
	}

	binArgs := append(append([]string{"-o", binPath}, extra...), sourceFile)
	if build := executeCommand(ctx, *compiler, binArgs...); build.ExitCode != 0 {
		golden.Compile = build
		return golden
	}
	if *verbose {
		log.Printf("[%s] compiled to %s", sourceFile, binPath)
	}

	runCtx, runCancel := context.WithTimeout(context.Background(), *timeout)
	defer runCancel()
	run := executeCommand(runCtx, binPath)
	golden.Run = &run
	return golden
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	for _, r := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, r.File, cNone)
		switch r.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, r.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, r.Message)
			fmt.Println(formatDiff(r.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, r.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, r.Message)
		}
		if *verbose && r.Actual != nil && r.Actual.Run != nil {
			fmt.Printf("  compile: %s, run: %s\n", r.Actual.Compile.Duration, r.Actual.Run.Duration)
		}
	}
	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") {
			b.WriteString(cRed)
		} else if strings.HasPrefix(trimmed, "+") {
			b.WriteString(cGreen)
		}
		b.WriteString("    " + line + cNone + "\n")
	}
	return b.String()
}

func writeJSONReport(results []*FileTestResult) {
	report := make(TestSuiteResults, len(results))
	for _, r := range results {
		report[r.File] = r
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return
	}
	outputFile := *outputJSON
	if *jsonDir != "" {
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, outputFile, err)
	}
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}
