package analyze

// Default tuning values. Both are deliberately configurable; the right
// neutral band and task threshold depend on the user's mail volume and
// tolerance for false positives.
const (
	// DefaultNeutralBand is the polarity magnitude below which sentiment
	// is classified neutral.
	DefaultNeutralBand = 0.05

	// DefaultTaskThreshold is the minimum extraction confidence for a
	// task to be surfaced. At 0.5 a task needs a due signal or a strong
	// imperative plus a deadline keyword.
	DefaultTaskThreshold = 0.5
)

// Config carries the analyzer tuning knobs.
type Config struct {
	// NeutralBand: |polarity| <= NeutralBand classifies as neutral.
	NeutralBand float64

	// TaskThreshold: tasks scoring below this are suppressed.
	TaskThreshold float64
}

// DefaultConfig returns the documented default tuning.
func DefaultConfig() Config {
	return Config{
		NeutralBand:   DefaultNeutralBand,
		TaskThreshold: DefaultTaskThreshold,
	}
}

func (c Config) withDefaults() Config {
	if c.NeutralBand <= 0 {
		c.NeutralBand = DefaultNeutralBand
	}
	if c.TaskThreshold <= 0 {
		c.TaskThreshold = DefaultTaskThreshold
	}
	return c
}
