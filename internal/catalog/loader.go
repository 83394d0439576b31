package catalog

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"kart-checkout/internal/model"

	"github.com/rs/zerolog"
)

// Loader reads a payment method seed document.
type Loader interface {
	Load(ctx context.Context, path string) ([]model.PaymentMethod, error)
}

// fileLoader implements Loader for local YAML files, gzipped when the name ends in .gz.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a file-based seed loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "catalog-loader").Logger(),
	}
}

func (l *fileLoader) Load(ctx context.Context, path string) ([]model.PaymentMethod, error) {
	l.logger.Info().Str("file", path).Msg("loading payment method seed")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to open seed file")
		return nil, fmt.Errorf("failed to open seed file %s: %w", path, err)
	}
	defer file.Close()

	methods, err := decodeMaybeGzip(path, file)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to read seed file")
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	l.logger.Info().Str("file", path).Int("methods_loaded", len(methods)).Msg("seed file loaded")
	return methods, nil
}

func decodeMaybeGzip(name string, r io.Reader) ([]model.PaymentMethod, error) {
	if !strings.HasSuffix(name, ".gz") {
		return decodeSeed(r)
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()
	return decodeSeed(gz)
}
