// Package types defines the values shared across embedkit packages.
//
// It holds the configuration error sentinels used by the batcher, the retry
// executor and the embedding client, the Usage accounting type, and the
// context keys used to attribute telemetry records:
//
//	if errors.Is(err, types.ErrMissingCredential) {
//	    // prompt for OPENAI_API_KEY
//	}
package types
