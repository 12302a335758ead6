package tts

// VoiceProfile selects and tunes the voice used for feedback.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier. Empty selects the
	// provider default.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 1.0 = default). Slower
	// speech helps learners hear each phoneme.
	SpeedFactor float64

	// Metadata holds provider-specific voice attributes (gender, accent, etc.).
	Metadata map[string]string
}
