package message

// ID identifies a message once it has been accepted by a broker. Concrete
// brokers choose their own representation (a Redis stream ID, an offset, ...).
type ID any

// Msg is the envelope carried through core/broker and core/worker. Headers
// hold broker-agnostic metadata — the job kind and its dedup key so a broker
// can make Produce idempotent without inspecting the payload.
type Msg struct {
	payload []byte
	headers Headers
}

func New(payload any) *Msg {
	m := &Msg{headers: NewHeaders()}
	switch p := payload.(type) {
	case []byte:
		m.payload = p
	default:
		v, _ := Marshal(payload)
		m.payload = v
	}
	return m
}

func (m *Msg) Payload() []byte {
	return m.payload
}

func (m *Msg) Unmarshal(v any) error {
	return Unmarshal(m.payload, v)
}

func (m *Msg) Headers() Headers {
	if m.headers == nil {
		m.headers = NewHeaders()
	}
	return m.headers
}

func (m *Msg) SetHeaders(h Headers) *Msg {
	m.headers = h
	return m
}

// DedupKey is the key a broker uses to make Produce a no-op for a message it
// has already accepted. Callers set it via Headers().Set(HeaderDedupKey, ...).
func (m *Msg) DedupKey() (string, bool) {
	v, ok := m.Headers().Get(HeaderDedupKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

const (
	// HeaderDedupKey carries the idempotency key for queue producers, e.g.
	// "research:<projectId>:<nextRunAt>".
	HeaderDedupKey = "dedupKey"
	// HeaderKind distinguishes research jobs from delivery jobs on the wire.
	HeaderKind = "kind"
)
