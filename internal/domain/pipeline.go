package domain

// Config holds the user-visible tunables for synthesis. Reads are
// snapshot-consistent per Chunk: a Chunk carries the Config that was live
// when it was issued, and a Chunk in flight completes with that snapshot
// even if SetConfig is called mid-utterance.
type Config struct {
	KokoroURL string
	Voice     string
	Speed     float32
}

// MinSpeed and MaxSpeed bound the valid Speed range.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// Utterance is one call to Speak(text). It is never constructed fully in
// memory — the Preparer streams it straight into Chunks — but the type
// documents the entity for callers and tests.
type Utterance struct {
	Epoch uint64
	Text  string
}

// Chunk is one synthesizable unit: roughly one sentence, possibly merged
// with its neighbors by the Preparer.
type Chunk struct {
	Epoch  uint64
	Index  int
	Text   string
	Config Config
	IsLast bool // true for the final chunk of its utterance
}

// Clip is the decoded PCM audio corresponding to one Chunk.
type Clip struct {
	Epoch      uint64
	Index      int
	SampleRate int
	Channels   int
	Samples    []int16
	IsLast     bool
}

// Status is a point-in-time snapshot of the Control block, returned by
// status() and embedded in HTTP/CLI responses. The JSON tags follow the
// wire contract (current_sentence_index, total_sentences, ...), since
// this struct is marshaled directly.
type Status struct {
	State        State   `json:"state"`
	CurrentIndex *int    `json:"current_sentence_index"`
	Total        int     `json:"total_sentences"`
	QueueLength  int     `json:"queue_length"`
	Voice        string  `json:"voice"`
	Speed        float32 `json:"speed"`
	LastError    string  `json:"last_error,omitempty"`
}
