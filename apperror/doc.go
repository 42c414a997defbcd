// Package apperror defines the error taxonomy shared by every layer.
//
// Errors are created at the point of failure with one of the constructors
// (NotFound, Duplicate, Validation, ...) and travel unchanged up to the
// transport boundary, which maps them to an HTTP status and serializes them
// with Serialize. Anything that is not an *Error by the time it reaches the
// boundary is treated as a system failure.
//
// Validation errors aggregate nested field violations and expose a single
// representative code (the "sub status"): the smallest constraint message
// that looks like an error code, for example "QUERY.PAGE_INVALID".
package apperror
