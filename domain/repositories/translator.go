package repositories

import "context"

// Translator abstracts the machine-translation provider
type Translator interface {
	// Translate blocks until the translated text is available
	Translate(ctx context.Context, text string) (string, error)
}

// DisplaySink receives translated text for the overlay.
// Implementations must not block; they are called from translation goroutines.
type DisplaySink interface {
	Show(text string) error
}
