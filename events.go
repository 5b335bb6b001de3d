package multident

// KVPair is a single event attribute.
type KVPair struct {
	Key   []byte
	Value []byte
}

// Pair is a convenience constructor for string attributes.
func Pair(key, value string) KVPair {
	return KVPair{Key: []byte(key), Value: []byte(value)}
}

// Event is an observability notification produced by the core for
// external indexers. Events never influence state transitions, they
// only describe them.
type Event struct {
	Type string
	Tags []KVPair
}

// Emitter receives events as they are produced. Implementations must
// not fail, events are fire and forget.
type Emitter interface {
	Emit(Event)
}

// NopEmitter discards all events.
func NopEmitter() Emitter {
	return nopEmitter{}
}

type nopEmitter struct{}

func (nopEmitter) Emit(Event) {}
