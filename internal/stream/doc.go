// Package stream turns the backend's newline-delimited streaming output into a
// single response text. It is split by concern:
//
//   - parser.go: ParseLine decodes one line into a Chunk (chat or completion layout).
//   - accumulator.go: Accumulator folds lines of one request into a Result.
//   - fallback.go: Extract recovers text from lines that never parsed.
//   - reader.go: Accumulate drives an Accumulator over an io.Reader.
//   - errors.go: error types and helpers.
//
// Nothing in this package keeps state across requests. Each request owns its
// Accumulator and nothing here logs or touches the network.
package stream
