//go:build ignore

package main

import (
	"compress/gzip"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"kart-checkout/internal/catalog"
	"kart-checkout/internal/model"
)

// generateCatalogSeed writes the built-in payment method catalog as a
// gzipped seed document, ready to upload under S3_PREFIX.
//
//	go run scripts/generate_catalog_seed.go -out data/catalog/payment_methods.yaml.gz
func main() {
	out := flag.String("out", "data/catalog/payment_methods.yaml.gz", "output file")
	flag.Parse()

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	methods := catalog.DefaultMethods()
	if err := writeSeed(*out, methods); err != nil {
		log.Fatalf("Failed to create %s: %v", *out, err)
	}

	fmt.Printf("Created %s with %d payment methods\n", *out, len(methods))
	for _, m := range methods {
		fmt.Printf("  - %-14s %s\n", m.Code, m.Name)
	}
}

func writeSeed(path string, methods []model.PaymentMethod) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	if err := catalog.EncodeSeed(gzipWriter, methods); err != nil {
		return err
	}
	return gzipWriter.Close()
}
