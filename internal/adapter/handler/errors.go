package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/autoparts-inventory/internal/adapter/upload"
	"github.com/rl1809/autoparts-inventory/internal/core/domain"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeBadRequest          = "bad_request"
	CodeNotFound            = "not_found"
	CodeDuplicate           = "duplicate"
	CodeInvalidChange       = "invalid_change"
	CodeTranscriptionFailed = "transcription_failed"
	CodeExtractionFailed    = "extraction_failed"
	CodeMalformedExtraction = "malformed_extraction"
	CodePayloadTooLarge     = "payload_too_large"
	CodeInternal            = "internal"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`

	// Outcomes lists the changes that reached the store before a failure.
	Outcomes []domain.Outcome `json:"outcomes,omitempty"`
}

type errorKind struct {
	target   error
	status   int
	grpcCode codes.Code
	code     string
	message  string

	// detailed errors are built by our own validation from caller input and
	// are safe to return verbatim.
	detailed bool
}

var internalKind = errorKind{
	status:   http.StatusInternalServerError,
	grpcCode: codes.Internal,
	code:     CodeInternal,
	message:  "internal error",
}

var errorKinds = []errorKind{
	{domain.ErrEmptyCommand, http.StatusBadRequest, codes.InvalidArgument, CodeBadRequest, "command is empty", false},
	{domain.ErrInvalidPart, http.StatusBadRequest, codes.InvalidArgument, CodeBadRequest, "invalid part", true},
	{domain.ErrPartNotFound, http.StatusNotFound, codes.NotFound, CodeNotFound, "part not found", false},
	{domain.ErrDuplicatePart, http.StatusConflict, codes.AlreadyExists, CodeDuplicate, "part already exists", false},
	{domain.ErrDuplicateRequest, http.StatusConflict, codes.AlreadyExists, CodeDuplicate, "request already processed", false},
	{domain.ErrInvalidChange, http.StatusUnprocessableEntity, codes.InvalidArgument, CodeInvalidChange, "invalid change", true},
	{domain.ErrTranscriptionFailed, http.StatusBadGateway, codes.Unavailable, CodeTranscriptionFailed, "transcription service unavailable", false},
	{domain.ErrExtractionRequestFailed, http.StatusBadGateway, codes.Unavailable, CodeExtractionFailed, "extraction service unavailable", false},
	{domain.ErrMalformedExtraction, http.StatusBadGateway, codes.Unavailable, CodeMalformedExtraction, "could not interpret the command", false},
	{upload.ErrTooLarge, http.StatusRequestEntityTooLarge, codes.ResourceExhausted, CodePayloadTooLarge, "payload too large", false},
}

// classify maps err onto the transport status and the message the client
// sees. Only detailed kinds expose err's text.
func classify(err error) (errorKind, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			if k.detailed {
				return k, err.Error()
			}
			return k, k.message
		}
	}
	return internalKind, internalKind.message
}
