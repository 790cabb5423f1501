// Package extract selects and scores the DOM region most likely to hold the
// article body, strips chrome and noise, and caps the output length.
package extract

import (
	"errors"
	"time"
)

// ErrNoContent signals that no candidate region produced usable article text.
// The condition is fatal for the page and is not retried.
var ErrNoContent = errors.New("no usable article content found")

// Snapshot is the extracted article, produced once per extraction call and
// never mutated afterward.
type Snapshot struct {
	URL     string
	Text    string
	Title   string
	Heading string
}

// Config bounds extraction output.
type Config struct {
	// MaxChars caps Text length; the cut prefers a sentence boundary past
	// the 80% watermark.
	MaxChars int
	// MinChars is the minimum usable text length; shorter output is
	// ErrNoContent.
	MinChars  int
	UserAgent string
	Timeout   time.Duration
}

// DefaultConfig returns the stock extraction bounds.
func DefaultConfig() Config {
	return Config{
		MaxChars:  60000,
		MinChars:  100,
		UserAgent: "Mozilla/5.0 (compatible; DeepDiveBot/1.0)",
		Timeout:   15 * time.Second,
	}
}
