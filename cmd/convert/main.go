package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"cad-converter/internal/convert"
	"cad-converter/internal/domain"
)

func main() {
	output := flag.String("o", "", "output file (default: input name with the new extension)")
	format := flag.String("f", "stl", "output format: stl, obj, step, gcode, 3mf")
	height := flag.Float64("height", 0, "extrusion height in mm (0 = default)")
	scale := flag.Float64("scale", 0, "scale factor (0 = default)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <input file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}
	inputPath := flag.Arg(0)

	outputFormat, err := domain.ParseOutputFormat(*format)
	if err != nil {
		log.Fatal(err)
	}

	settings := domain.DefaultSettings()
	if *height > 0 {
		settings.ExtrusionHeight = *height
	}
	if *scale > 0 {
		settings.ScaleFactor = *scale
	}
	if err := settings.Validate(); err != nil {
		log.Fatalf("invalid settings: %v", err)
	}

	outputPath := *output
	if outputPath == "" {
		stem := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
		outputPath = stem + "." + string(outputFormat)
	}

	converter, err := convert.New(settings)
	if err != nil {
		log.Fatalf("initialize converter: %v", err)
	}
	defer converter.Cleanup()

	result := converter.Convert(context.Background(), inputPath, outputFormat, outputPath)
	for _, warning := range result.Warnings {
		log.Printf("warning: %s", warning)
	}
	if !result.Success {
		log.Fatalf("conversion failed: %s", result.ErrorMessage)
	}
	log.Printf("wrote %s", result.OutputFile)
}
