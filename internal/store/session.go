package store

import (
	"sync"
	"time"

	"meeting-moderator-be/internal/entity"
)

// Session is the full in-memory state for one meeting, owned exclusively by
// the Store. All access goes through Store methods; the embedded lock
// linearizes mutations on a single session without blocking other sessions.
type Session struct {
	mu sync.RWMutex

	id                 string
	agenda             string
	status             entity.SessionStatus
	createdAt          time.Time
	statusUpdatedAt    float64
	recordingStartedAt float64
	recordingURL       string

	currentTopic   string
	topicUpdatedAt float64

	tangent entity.TangentState

	// Append-only transcript of finalized utterances, non-decreasing in
	// timestamp. Partials live in partials until replaced or promoted.
	transcript []entity.Utterance
	partials   map[string]entity.Utterance
	seenFinals map[string]struct{}

	// Cheap inverted index: token -> utterance indices, for Q&A retrieval.
	tokenIndex map[string][]int

	// Participant name -> platform id, kept for future direct replies.
	participants map[string]string
}

func newSession(id, agenda string, now time.Time) *Session {
	return &Session{
		id:           id,
		agenda:       agenda,
		status:       entity.StatusJoining,
		createdAt:    now,
		partials:     make(map[string]entity.Utterance),
		seenFinals:   make(map[string]struct{}),
		tokenIndex:   make(map[string][]int),
		participants: make(map[string]string),
	}
}

// Snapshot is a read-only copy of everything the analyzers and the Q&A engine
// need. It shares no memory with the live session, so it is safe to use while
// awaiting external calls.
type Snapshot struct {
	ID           string
	Agenda       string
	Status       entity.SessionStatus
	CurrentTopic string
	Utterances   []entity.Utterance
	Index        map[string][]int
}

// Tail returns the most recent n utterances of the snapshot.
func (s *Snapshot) Tail(n int) []entity.Utterance {
	if n <= 0 || len(s.Utterances) <= n {
		return s.Utterances
	}
	return s.Utterances[len(s.Utterances)-n:]
}
