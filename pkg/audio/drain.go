package audio

// Drain reads from ch until it is closed, discarding all values. Use it to
// release a producer goroutine whose output is no longer wanted, e.g. a
// synthesis stream after playback failed.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
