package publisher

import "errors"

// Sentinel errors returned by the shared HTTP fetch client and the
// adapters. The adapters return them wrapped with the failing URL; they
// are never translated into entity.ErrContentTooShort /
// entity.ErrURLNotOwned, which the adapters return for their own checks.
var (
	// ErrTooManyRedirects indicates the redirect chain exceeded the
	// configured maximum.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBodyTooLarge indicates the response body exceeded the size limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrFetchTimeout indicates the request exceeded the configured timeout.
	ErrFetchTimeout = errors.New("request timeout")

	// ErrExtractionFailed indicates the Readability algorithm could not
	// locate article content in the fetched HTML.
	ErrExtractionFailed = errors.New("content extraction failed")

	// ErrUnexpectedStatus indicates the server returned a status other
	// than 200 OK.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)
