package session

import (
	"sync"
	"time"

	"billdesk/terminal/internal/catalog"
	"billdesk/terminal/internal/domain"
)

// DefaultDebounce is the quiet period before a typed query is searched.
const DefaultDebounce = 250 * time.Millisecond

// Suggestions is the answer to one submitted query.
type Suggestions struct {
	Seq      uint64           `json:"seq"`
	Query    string           `json:"query"`
	Products []domain.Product `json:"products"`
	Notices  []domain.Notice  `json:"notices,omitempty"`
}

// SearchFunc may be slow; results for superseded queries are dropped.
type SearchFunc func(query string) []domain.Product

// Suggester debounces typed queries. Only the last submitted query's results
// are delivered, even if an older search finishes later. Searches are never
// cancelled; staleness is decided by sequence number.
type Suggester struct {
	search  SearchFunc
	delay   time.Duration
	deliver func(Suggestions)

	mu     sync.Mutex
	seq    uint64
	timer  *time.Timer
	latest Suggestions
}

func NewSuggester(search SearchFunc, delay time.Duration, deliver func(Suggestions)) *Suggester {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Suggester{search: search, delay: delay, deliver: deliver}
}

// Submit records query and (re)starts the quiet-period timer. It returns the
// query's sequence number.
func (s *Suggester) Submit(query string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	seq := s.seq
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() { s.run(seq, query) })
	return seq
}

func (s *Suggester) run(seq uint64, query string) {
	s.mu.Lock()
	current := s.seq
	s.mu.Unlock()
	if seq != current {
		return
	}

	products := s.search(query)
	result := Suggestions{Seq: seq, Query: query, Products: products}
	for _, p := range products {
		if n := catalog.LowStockNotice(p); n != nil {
			result.Notices = append(result.Notices, *n)
		}
	}

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return
	}
	s.latest = result
	deliver := s.deliver
	s.mu.Unlock()

	if deliver != nil {
		deliver(result)
	}
}

// Latest returns the most recent delivered result and the newest submitted
// sequence. Pending is true while the newest query has no result yet.
func (s *Suggester) Latest() (res Suggestions, pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.latest.Seq != s.seq
}

func (s *Suggester) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}
