package commands

import (
	"fmt"
	"log/slog"

	"github.com/jo-hoe/worldscars/internal/backend/commandstructure"
)

// ConvertParams represents typed parameters for the convert command
type ConvertParams struct {
	Format            string
	Quality           int
	SvgFallbackWidth  int
	SvgFallbackHeight int
}

// NewConvertParamsFromMap creates ConvertParams from a generic map
func NewConvertParamsFromMap(params map[string]any) (*ConvertParams, error) {
	format := commandstructure.GetStringParam(params, "format", FormatJPEG)
	if format == "jpg" {
		format = FormatJPEG
	}
	if format != FormatJPEG && format != FormatPNG {
		return nil, fmt.Errorf("invalid format: %s (must be 'jpeg' or 'png')", format)
	}

	quality := commandstructure.GetIntParam(params, "quality", defaultJPEGQuality)
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("quality must be between 1 and 100, got %d", quality)
	}

	return &ConvertParams{
		Format:            format,
		Quality:           quality,
		SvgFallbackWidth:  commandstructure.GetIntParam(params, "svgFallbackWidth", 0),
		SvgFallbackHeight: commandstructure.GetIntParam(params, "svgFallbackHeight", 0),
	}, nil
}

// ConvertCommand re-encodes any supported input (including SVG) into JPEG or PNG
type ConvertCommand struct {
	name   string
	params *ConvertParams
}

func NewConvertCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewConvertParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &ConvertCommand{
		name:   "ConvertCommand",
		params: typedParams,
	}, nil
}

func (c *ConvertCommand) Name() string {
	return c.name
}

func (c *ConvertCommand) Execute(imageData []byte) ([]byte, error) {
	// Input already in the target format is passed through untouched
	if format, err := DetectFormat(imageData); err == nil && format == c.params.Format {
		slog.Debug("ConvertCommand: input already in target format; returning original bytes", "format", format)
		return imageData, nil
	}

	img, sourceFormat, err := decodeImage(imageData, c.params.SvgFallbackWidth, c.params.SvgFallbackHeight)
	if err != nil {
		slog.Error("ConvertCommand: failed to decode image", "error", err)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	out, err := encodeImage(img, c.params.Format, c.params.Quality)
	if err != nil {
		return nil, err
	}

	slog.Debug("ConvertCommand: conversion complete",
		"source_format", sourceFormat,
		"target_format", c.params.Format,
		"input_size_bytes", len(imageData),
		"output_size_bytes", len(out))
	return out, nil
}

func (c *ConvertCommand) GetParams() *ConvertParams {
	return c.params
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("ConvertCommand", NewConvertCommand); err != nil {
		panic(fmt.Sprintf("failed to register ConvertCommand: %v", err))
	}
}
