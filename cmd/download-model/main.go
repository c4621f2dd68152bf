// Command download-model converts the all-MiniLM-L6-v2 sentence-transformer
// to ONNX so ticketsql can embed catalog values without an embedding
// endpoint.
//
// The conversion script is embedded, so the command works when installed
// with `go install`. It needs uv (https://docs.astral.sh/uv/) and
// Python >= 3.10.
//
// Usage: download-model [dest]
//
// Without dest the model goes to MODEL_DIR/minilm, where MODEL_DIR defaults
// to DATA_DIR/models. The same .env files as the ticketsql command apply.
package main

import (
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/helixml/ticketsql/internal/config"
)

//go:embed convert-model.py
var script []byte

// modelName is the directory created under the model root.
const modelName = "minilm"

const convertAttempts = 4

func main() {
	dest, err := resolveDest(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "download-model: %v\n", err)
		os.Exit(1)
	}
	if modelPresent(dest) {
		fmt.Printf("Model already present at %s\n", dest)
		return
	}
	if err := convert(dest); err != nil {
		fmt.Fprintf(os.Stderr, "convert model: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Model ready at %s\n", dest)
}

// resolveDest returns the explicit destination or the configured model
// directory.
func resolveDest(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	cfg, err := config.LoadConfig("")
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.ModelDir(), modelName), nil
}

// modelPresent reports whether dest holds both the tokenizer and the ONNX
// graph the local embedder loads.
func modelPresent(dest string) bool {
	for _, name := range []string{"tokenizer.json", "model.onnx"} {
		if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
			return false
		}
	}
	return true
}

func convert(dest string) error {
	tmp, err := os.CreateTemp("", "convert-model-*.py")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(script); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write script: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close script: %w", err)
	}

	fmt.Printf("Converting %s model to %s...\n", modelName, dest)
	delay := 2 * time.Second
	for attempt := 1; ; attempt++ {
		cmd := exec.Command("uv", "run", tmp.Name(), dest)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		err = cmd.Run()
		if err == nil || attempt == convertAttempts {
			return err
		}
		fmt.Fprintf(os.Stderr, "attempt %d failed, retry in %s: %v\n", attempt, delay, err)
		time.Sleep(delay)
		delay *= 2
	}
}
