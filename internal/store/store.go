package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"meeting-moderator-be/internal/entity"
	"meeting-moderator-be/internal/pkg/apperrors"
	"meeting-moderator-be/pkg/utils"
)

// Store is the keyed registry of meeting sessions. Active sessions never
// expire; sessions that transitioned to ended are re-registered with the
// retention TTL so the cache reaper evicts them once consumers have drained.
type Store struct {
	sessions  *cache.Cache
	retention time.Duration
	now       func() time.Time
}

func NewStore(retention time.Duration) *Store {
	return &Store{
		sessions:  cache.New(cache.NoExpiration, 10*time.Minute),
		retention: retention,
		now:       time.Now,
	}
}

// Create registers a new session. Creating an id that already exists returns
// the existing session untouched, matching at-least-once webhook delivery.
func (s *Store) Create(id, agenda string) entity.SessionInfo {
	sess := s.getOrCreate(id)
	if agenda = strings.TrimSpace(agenda); agenda != "" {
		sess.mu.Lock()
		sess.agenda = agenda
		sess.mu.Unlock()
	}
	return s.info(sess)
}

// Get returns a read-only view of the session's scalar state.
func (s *Store) Get(id string) (entity.SessionInfo, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return entity.SessionInfo{}, err
	}
	return s.info(sess), nil
}

// GetOrCreate is the webhook-facing lookup: events may legitimately arrive
// before the session was registered locally.
func (s *Store) GetOrCreate(id string) entity.SessionInfo {
	return s.info(s.getOrCreate(id))
}

// Exists reports whether the session is registered, without creating it.
func (s *Store) Exists(id string) bool {
	_, found := s.sessions.Get(id)
	return found
}

func (s *Store) SetAgenda(id, agenda string) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.agenda = strings.TrimSpace(agenda)
	sess.mu.Unlock()
	return nil
}

// SetStatus updates the lifecycle status. Transitioning to ended arms the
// retention TTL; the session stays readable until the reaper evicts it.
func (s *Store) SetStatus(id string, status entity.SessionStatus) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.status = status
	sess.statusUpdatedAt = unix(s.now())
	sess.mu.Unlock()

	if status == entity.StatusEnded || status == entity.StatusError {
		s.sessions.Set(id, sess, s.retention)
	}
	return nil
}

func (s *Store) SetRecordingURL(id, url string) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.recordingURL = url
	sess.mu.Unlock()
	return nil
}

// SetPartial stores the speaker's pending partial, replacing any previous one
// (last-partial-wins). Partials never enter the transcript log.
func (s *Store) SetPartial(id string, utt entity.Utterance) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	utt.Finality = entity.FinalityPartial
	sess.mu.Lock()
	sess.partials[utt.Speaker] = utt
	sess.mu.Unlock()
	return nil
}

// AppendFinal appends a finalized utterance to the transcript log and clears
// the speaker's pending partial. Duplicate (speaker, timestamp, text) events
// are dropped. Returns the normalized utterance as it entered the log (trimmed
// fields, clamped timestamp) and whether the log grew; downstream consumers
// must use the returned copy so archives and broadcasts match the log.
func (s *Store) AppendFinal(id string, utt entity.Utterance) (entity.Utterance, bool, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return entity.Utterance{}, false, err
	}

	utt.Speaker = strings.TrimSpace(utt.Speaker)
	if utt.Speaker == "" {
		utt.Speaker = "unknown"
	}
	utt.Text = strings.TrimSpace(utt.Text)
	if utt.Text == "" {
		return utt, false, nil
	}
	utt.Finality = entity.FinalityFinal

	key := fmt.Sprintf("%s|%.3f|%s", utt.Speaker, utt.Timestamp, utt.Text)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, dup := sess.seenFinals[key]; dup {
		return utt, false, nil
	}
	sess.seenFinals[key] = struct{}{}

	// Arrival-validated ordering: the log stays non-decreasing in timestamp.
	if n := len(sess.transcript); n > 0 && utt.Timestamp < sess.transcript[n-1].Timestamp {
		utt.Timestamp = sess.transcript[n-1].Timestamp
	}
	if sess.recordingStartedAt == 0 {
		sess.recordingStartedAt = utt.Timestamp
	}

	delete(sess.partials, utt.Speaker)

	idx := len(sess.transcript)
	sess.transcript = append(sess.transcript, utt)
	for _, tok := range utils.Tokenize(utt.Text) {
		sess.tokenIndex[tok] = append(sess.tokenIndex[tok], idx)
	}
	return utt, true, nil
}

// UpdateTopic overwrites the current topic (last-write-wins).
func (s *Store) UpdateTopic(id, topic string) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.currentTopic = strings.TrimSpace(topic)
	sess.topicUpdatedAt = unix(s.now())
	sess.mu.Unlock()
	return nil
}

// TangentState returns a copy of the detector state.
func (s *Store) TangentState(id string) (entity.TangentState, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return entity.TangentState{}, err
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	st := sess.tangent
	st.Strikes = append([]entity.Strike(nil), sess.tangent.Strikes...)
	return st, nil
}

// SetTangentState replaces the detector state. The tangent detector is the
// only writer, so read-modify-write cycles cannot race.
func (s *Store) SetTangentState(id string, st entity.TangentState) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.tangent = st
	sess.mu.Unlock()
	return nil
}

// SnapshotTranscript returns an ordered copy of the finalized transcript.
func (s *Store) SnapshotTranscript(id string) ([]entity.Utterance, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return append([]entity.Utterance(nil), sess.transcript...), nil
}

// Snapshot returns a consistent deep copy of the session state the analyzers
// and Q&A read. Safe to hold across external calls.
func (s *Store) Snapshot(id string) (*Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()

	index := make(map[string][]int, len(sess.tokenIndex))
	for tok, idxs := range sess.tokenIndex {
		index[tok] = append([]int(nil), idxs...)
	}
	return &Snapshot{
		ID:           sess.id,
		Agenda:       sess.agenda,
		Status:       sess.status,
		CurrentTopic: sess.currentTopic,
		Utterances:   append([]entity.Utterance(nil), sess.transcript...),
		Index:        index,
	}, nil
}

// RememberParticipant records a participant's platform id by display name.
func (s *Store) RememberParticipant(id, name, pid string) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	pid = strings.TrimSpace(pid)
	if name == "" || pid == "" {
		return nil
	}
	sess.mu.Lock()
	sess.participants[name] = pid
	sess.mu.Unlock()
	return nil
}

// Participants returns the known participant display names, sorted.
func (s *Store) Participants(id string) ([]string, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.RLock()
	names := make([]string, 0, len(sess.participants))
	for name := range sess.participants {
		names = append(names, name)
	}
	sess.mu.RUnlock()
	sort.Strings(names)
	return names, nil
}

// Evict removes the session immediately, regardless of retention.
func (s *Store) Evict(id string) {
	s.sessions.Delete(id)
}

func (s *Store) lookup(id string) (*Session, error) {
	if x, found := s.sessions.Get(id); found {
		return x.(*Session), nil
	}
	return nil, apperrors.ErrSessionNotFound
}

func (s *Store) getOrCreate(id string) *Session {
	if x, found := s.sessions.Get(id); found {
		return x.(*Session)
	}
	sess := newSession(id, "", s.now())
	if err := s.sessions.Add(id, sess, cache.NoExpiration); err != nil {
		// Lost the race to a concurrent creator; use theirs.
		if x, found := s.sessions.Get(id); found {
			return x.(*Session)
		}
	}
	return sess
}

func (s *Store) info(sess *Session) entity.SessionInfo {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return entity.SessionInfo{
		ID:                 sess.id,
		Agenda:             sess.agenda,
		Status:             sess.status,
		CurrentTopic:       sess.currentTopic,
		TopicUpdatedAt:     sess.topicUpdatedAt,
		RecordingStartedAt: sess.recordingStartedAt,
		RecordingURL:       sess.recordingURL,
		CreatedAt:          sess.createdAt,
		StatusUpdatedAt:    sess.statusUpdatedAt,
		UtteranceCount:     len(sess.transcript),
	}
}

func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
