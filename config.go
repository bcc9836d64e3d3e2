package quoll

import "errors"

// Config carries tunables for a database session. The zero value is not
// usable; start from the defaults the Builder applies and override fields
// as needed.
type Config struct {
	Credential CredentialConfig
	Events     EventConfig
	Metrics    MetricsConfig
}

// CredentialConfig holds the argon2id cost parameters used to hash the
// database credential record.
type CredentialConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// EventConfig controls the asynchronous lifecycle event dispatcher.
type EventConfig struct {
	// Enabled turns event dispatch on. Without a sink, events are dropped
	// by a no-op sink.
	Enabled bool
	// BufferSize is the dispatcher channel capacity. Values <= 0 fall
	// back to 1.
	BufferSize int
	// DropIfFull drops events instead of blocking the emitting operation
	// when the buffer is full. Dropped events are counted.
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics collector.
type MetricsConfig struct {
	Enabled bool
	// EnableLatencyHistograms additionally records the commit latency
	// histogram.
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Credential: CredentialConfig{
			Memory:      64 * 1024,
			Time:        2,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Events: EventConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// Validate rejects configurations that cannot produce a working session.
func (c Config) Validate() error {
	if c.Events.Enabled && c.Events.BufferSize < 0 {
		return errors.New("event buffer size must be >= 0")
	}
	if c.Credential.Memory == 0 || c.Credential.Time == 0 || c.Credential.Parallelism == 0 {
		return errors.New("credential cost parameters must be non-zero")
	}
	if c.Credential.SaltLength == 0 || c.Credential.KeyLength == 0 {
		return errors.New("credential salt and key lengths must be non-zero")
	}
	return nil
}
