package dedupe

// Option applies a configuration option to the deduper.
type Option func(*viewDeduper)

// WithMaxSize bounds the number of remembered keys. Zero or negative keeps
// every key.
func WithMaxSize(maxSize int) Option {
	return func(d *viewDeduper) {
		d.maxSize = maxSize
	}
}
