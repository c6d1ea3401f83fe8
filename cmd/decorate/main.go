package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"avatarforge/internal/assets"
	"avatarforge/internal/compose"
	"avatarforge/internal/domain"
	"avatarforge/internal/imaging"
	"avatarforge/internal/infra"
	"avatarforge/internal/ingest"
)

func main() {
	var (
		avatarFlag     string
		decorationFlag string
		outFlag        string
		sizeFlag       int
		timeoutFlag    time.Duration
	)

	flag.StringVar(&avatarFlag, "avatar", "", "avatar image file (PNG, JPEG, GIF or WEBP)")
	flag.StringVar(&decorationFlag, "decoration", "", "decoration overlay file (PNG, APNG or GIF); omit for none")
	flag.StringVar(&outFlag, "out", "", "output file; the extension is replaced with .gif or .png to match the result")
	flag.IntVar(&sizeFlag, "size", 288, "side of the output canvas in pixels")
	flag.DurationVar(&timeoutFlag, "timeout", time.Minute, "composition timeout")
	flag.Parse()

	if strings.TrimSpace(avatarFlag) == "" || strings.TrimSpace(outFlag) == "" {
		exitWithError(errors.New("-avatar and -out are required"))
	}

	logger := infra.NewLogger("cli").With().Str("cmd", "decorate").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	path, art, err := decorate(ctx, options{
		Avatar:     avatarFlag,
		Decoration: decorationFlag,
		Out:        outFlag,
		Size:       sizeFlag,
		Timeout:    timeoutFlag,
	}, logger)
	if err != nil {
		exitWithError(err)
	}

	logger.Info().
		Str("out", path).
		Bool("animated", art.Animated).
		Int("frames", art.Frames).
		Int64("bytes", art.Size()).
		Msg("decorated avatar written")
}

type options struct {
	Avatar     string
	Decoration string
	Out        string
	Size       int
	Timeout    time.Duration
}

// decorate runs the same normalize and compose pipeline as the API against
// local files and writes the artifact next to opts.Out.
func decorate(ctx context.Context, opts options, logger infra.Logger) (string, *domain.Artifact, error) {
	raw, err := os.ReadFile(opts.Avatar)
	if err != nil {
		return "", nil, fmt.Errorf("read avatar: %w", err)
	}

	engine := imaging.New(imaging.Options{OutputSize: opts.Size, MaxSide: max(opts.Size, 512)})
	normalizer := ingest.New(ingest.Options{Engine: engine, MaxBytes: int64(len(raw)) + 1, Timeout: opts.Timeout, Logger: logger})

	avatar, err := normalizer.Normalize(ctx, domain.FileSource(raw, ""))
	if err != nil {
		return "", nil, fmt.Errorf("normalize avatar: %w", err)
	}

	deco := domain.NoDecoration
	var reader assets.Reader
	if strings.TrimSpace(opts.Decoration) != "" {
		reader, err = assets.New(assets.Options{Dir: filepath.Dir(opts.Decoration)})
		if err != nil {
			return "", nil, err
		}
		name := filepath.Base(opts.Decoration)
		deco = domain.Decoration{ID: strings.TrimSuffix(name, filepath.Ext(name)), AssetRef: name}
	}

	res := compose.New(engine, reader, opts.Timeout, logger).Compose(ctx, avatar, deco)
	if !res.OK() {
		if res.Err == nil {
			res.Err = errors.New("empty artifact")
		}
		return "", nil, res.Err
	}

	out := strings.TrimSuffix(opts.Out, filepath.Ext(opts.Out)) + "." + res.Artifact.Extension()
	if err := os.WriteFile(out, res.Artifact.Data, 0o644); err != nil {
		return "", nil, fmt.Errorf("write output: %w", err)
	}
	return out, res.Artifact, nil
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "decorate: %v\n", err)
	os.Exit(1)
}
