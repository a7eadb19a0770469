package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const envUmbraModelsDir = "UMBRA_MODELS_DIR"

// stdinIsTTY is a small seam for tests.
var stdinIsTTY = isTTY

// modelNameFromPath is the checkpoint name used in output: the file name
// with its extension removed.
func modelNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func weightsDir() string {
	if strings.TrimSpace(modelsDir) != "" {
		return strings.TrimSpace(modelsDir)
	}
	return strings.TrimSpace(os.Getenv(envUmbraModelsDir))
}

// resolveWeightsArg turns a weights argument into a checkpoint path.
// Explicit paths win; bare names are resolved against the models
// directory. With no argument at all, a lone checkpoint in the models
// directory is used, and multiple checkpoints prompt an interactive
// selection when stdin is a terminal.
func resolveWeightsArg(fileArg, dir string, stdin io.Reader, stderr io.Writer) (string, error) {
	fileArg = strings.TrimSpace(fileArg)
	if fileArg != "" {
		if looksLikeWeightsPath(fileArg) {
			return filepath.Clean(fileArg), nil
		}
		if dir == "" {
			return "", fmt.Errorf("--models-dir is required to resolve %q unless %s is set", fileArg, envUmbraModelsDir)
		}
		if resolved := resolveWeightsInDir(dir, fileArg); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("weights %q not found in %s", fileArg, dir)
	}

	if dir == "" {
		return "", fmt.Errorf("--weights or --models-dir is required unless %s is set", envUmbraModelsDir)
	}

	files, err := discoverWeightsFiles(dir)
	if err != nil {
		return "", err
	}
	switch len(files) {
	case 0:
		return "", fmt.Errorf("no .weights files found in %s", dir)
	case 1:
		_, _ = fmt.Fprintf(stderr, "using checkpoint %s\n", files[0])
		return files[0], nil
	default:
		if !stdinIsTTY() {
			return "", fmt.Errorf(
				"multiple checkpoints found in %s but stdin is not interactive; set --weights",
				dir,
			)
		}
		return selectWeightsInteractively(dir, files, stdin, stderr)
	}
}

func looksLikeWeightsPath(v string) bool {
	if strings.Contains(v, string(filepath.Separator)) {
		return true
	}
	return strings.HasSuffix(strings.ToLower(v), ".weights")
}

func resolveWeightsInDir(dir, name string) string {
	cand := filepath.Join(dir, name)
	if fileExists(cand) {
		return cand
	}
	if !strings.HasSuffix(strings.ToLower(name), ".weights") {
		cand = filepath.Join(dir, name+".weights")
		if fileExists(cand) {
			return cand
		}
	}
	return ""
}

func discoverWeightsFiles(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("models directory is empty")
	}
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("models path is not a directory: %s", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".weights") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func selectWeightsInteractively(dir string, files []string, stdin io.Reader, stderr io.Writer) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("no checkpoints available in %s", dir)
	}

	_, _ = fmt.Fprintf(stderr, "select a checkpoint from %s\n", dir)
	for i, f := range files {
		_, _ = fmt.Fprintf(stderr, "%d. %s\n", i+1, checkpointDisplayName(dir, f))
	}

	reader := bufio.NewReader(stdin)
	for {
		_, _ = fmt.Fprintf(stderr, "enter selection [1-%d]: ", len(files))
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if errors.Is(err, io.EOF) {
				return "", errors.New("no selection provided on stdin; set --weights")
			}
			continue
		}

		idx, convErr := strconv.Atoi(line)
		if convErr != nil || idx < 1 || idx > len(files) {
			_, _ = fmt.Fprintf(stderr, "invalid selection %q\n", line)
			if errors.Is(err, io.EOF) {
				return "", errors.New("invalid selection provided on stdin; set --weights")
			}
			continue
		}
		return files[idx-1], nil
	}
}

func checkpointDisplayName(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return filepath.Base(path)
	}
	return rel
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func isTTY() bool {
	st, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (st.Mode() & os.ModeCharDevice) != 0
}
