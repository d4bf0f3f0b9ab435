package collector

// Event is an opaque record describing one observed interaction.
// The collector never inspects its contents; it only stores, counts and serializes it.
type Event map[string]interface{}

// Capturer accepts events. *Collector satisfies it, as do test doubles.
type Capturer interface {
	Capture(event Event)
}

var _ Capturer = (*Collector)(nil)
