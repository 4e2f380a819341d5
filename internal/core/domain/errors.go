package domain

import "errors"

// Batch-fatal pipeline failures. Nothing is applied to the store when one of
// these is returned.
var (
	ErrTranscriptionFailed     = errors.New("transcription failed")
	ErrExtractionRequestFailed = errors.New("extraction request failed")
	ErrMalformedExtraction     = errors.New("malformed extraction")
	ErrInvalidChange           = errors.New("invalid change")
)

var (
	ErrPartNotFound     = errors.New("part not found")
	ErrInvalidPart      = errors.New("invalid part")
	ErrDuplicatePart    = errors.New("part with the same manufacturer, part and model already exists")
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrEmptyCommand     = errors.New("command is empty")
)
