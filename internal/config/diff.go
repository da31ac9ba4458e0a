package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; storage and
// server address changes require a restart and are reported so the caller
// can log a warning.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ScoringChanged covers the scorer thresholds.
	ScoringChanged bool

	// RevealChanged covers the masker strategy and knobs.
	RevealChanged bool

	// PracticeChanged covers timing thresholds and advancement limits.
	PracticeChanged bool

	// MasteryChanged covers the tracker tuning.
	MasteryChanged bool

	// RestartRequired is set when a change cannot be applied live
	// (listen address or storage DSN).
	RestartRequired bool
}

// Changed reports whether any hot-reloadable field differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.ScoringChanged || d.RevealChanged ||
		d.PracticeChanged || d.MasteryChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Scoring != new.Scoring {
		d.ScoringChanged = true
	}
	if old.Reveal != new.Reveal {
		d.RevealChanged = true
	}
	if practiceDiffers(old.Practice, new.Practice) {
		d.PracticeChanged = true
	}
	if old.Mastery != new.Mastery {
		d.MasteryChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Storage.PostgresDSN != new.Storage.PostgresDSN {
		d.RestartRequired = true
	}

	return d
}

// practiceDiffers compares practice configs field by field; the AutoHide
// pointer is compared by resolved value.
func practiceDiffers(old, new PracticeConfig) bool {
	return old.DefaultMode != new.DefaultMode ||
		old.PhraseSize != new.PhraseSize ||
		old.MaxPhraseAttempts != new.MaxPhraseAttempts ||
		old.HintAfterSeconds != new.HintAfterSeconds ||
		old.AutoHideAfterSeconds != new.AutoHideAfterSeconds ||
		old.AdvanceAfterSeconds != new.AdvanceAfterSeconds ||
		old.SessionIdleTimeout != new.SessionIdleTimeout ||
		old.AutoHideEnabled() != new.AutoHideEnabled()
}
