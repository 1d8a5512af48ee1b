package api

import (
	"sync"
)

// DefaultStoreCapacity bounds a ScoreStore created with a non-positive
// capacity.
const DefaultStoreCapacity = 1024

// ScoreStore keeps recent score responses by id. When full, the oldest
// response is evicted.
type ScoreStore struct {
	mu       sync.Mutex
	capacity int
	scores   map[string]ScoreResponse
	order    []string
}

func NewScoreStore(capacity int) *ScoreStore {
	if capacity <= 0 {
		capacity = DefaultStoreCapacity
	}
	return &ScoreStore{
		capacity: capacity,
		scores:   make(map[string]ScoreResponse),
	}
}

func (s *ScoreStore) Save(resp ScoreResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scores[resp.ID]; !ok {
		s.order = append(s.order, resp.ID)
	}
	s.scores[resp.ID] = resp
	for len(s.order) > s.capacity {
		delete(s.scores, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *ScoreStore) Get(id string) (ScoreResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.scores[id]
	return resp, ok
}

func (s *ScoreStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scores[id]; !ok {
		return false
	}
	delete(s.scores, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *ScoreStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scores)
}
