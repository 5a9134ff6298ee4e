package adapter

import "context"

// OCREngine turns raw image bytes into recognized text. Implementations
// return best-effort text, possibly empty; any failure is an error.
type OCREngine interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (string, error)
}
