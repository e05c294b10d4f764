package transform

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// avifencPath is resolved once at startup. AVIF output is available only
// when the avifenc tool is installed; without it, avif requests fail like
// any other codec error and degrade to the placeholder.
var avifencPath string

func init() {
	avifencPath, _ = exec.LookPath("avifenc")
}

const avifencTimeout = 30 * time.Second

// encodeAVIF shells out to avifenc through temp files. Quality 1..100 is
// mapped onto the encoder's 63..0 quantizer scale.
func encodeAVIF(img image.Image, quality int) ([]byte, error) {
	if avifencPath == "" {
		return nil, fmt.Errorf("transform: avif encoder unavailable: avifenc not in PATH")
	}

	dir, err := os.MkdirTemp("", "pixel-avif-*")
	if err != nil {
		return nil, fmt.Errorf("transform: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.avif")

	f, err := os.Create(in)
	if err != nil {
		return nil, fmt.Errorf("transform: temp file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return nil, fmt.Errorf("transform: staging png: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("transform: closing staging file: %w", err)
	}

	q := 63 - quality*63/100
	ctx, cancel := context.WithTimeout(context.Background(), avifencTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, avifencPath,
		"--min", fmt.Sprint(q),
		"--max", fmt.Sprint(q),
		"--speed", "8",
		in, out,
	)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("transform: avifenc: %w", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("transform: reading avif output: %w", err)
	}
	return data, nil
}
