package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AudioChanged covers the buffer length and the silence threshold.
	// The sample rate is fixed at startup and is not tracked here.
	AudioChanged        bool
	NewBufferSeconds    float64
	NewSilenceThreshold float64
}

// Changed reports whether the diff carries any reloadable change.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.AudioChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart: the log level
// and the audio flush tunables. Everything else (listen address, provider
// credentials, storage driver, sample rate) requires a restart and is
// deliberately ignored here.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Audio.BufferSeconds != new.Audio.BufferSeconds ||
		old.Audio.SilenceRatio() != new.Audio.SilenceRatio() {
		d.AudioChanged = true
		d.NewBufferSeconds = new.Audio.BufferSeconds
		d.NewSilenceThreshold = new.Audio.SilenceRatio()
	}

	return d
}
