package config

// Persistent state keys (Registry)
const (
	KeyTTSFallback = "tts_fallback"
	KeyVolume      = "volume"
	KeyVoice       = "narration_voice"
)
