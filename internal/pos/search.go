package pos

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

// CustomerDirectory looks customers up by free text.
type CustomerDirectory interface {
	SearchCustomers(ctx context.Context, query string) ([]models.CustomerRef, error)
}

// SearchResult is the outcome of one directory lookup.
type SearchResult struct {
	Seq       uint64               `json:"seq"`
	Query     string               `json:"query"`
	Customers []models.CustomerRef `json:"customers"`
	Err       error                `json:"-"`
	Pending   bool                 `json:"pending"`
}

// CustomerSearch debounces search-as-you-type lookups. Each Query cancels the
// previous pending or in-flight lookup, and results for a superseded query
// are dropped.
type CustomerSearch struct {
	directory CustomerDirectory
	delay     time.Duration
	onResult  func(SearchResult)

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	latest SearchResult
	closed bool
	wg     sync.WaitGroup
}

// NewCustomerSearch creates a search that waits delay after the last
// keystroke before calling the directory. onResult may be nil.
func NewCustomerSearch(directory CustomerDirectory, delay time.Duration, onResult func(SearchResult)) *CustomerSearch {
	return &CustomerSearch{
		directory: directory,
		delay:     delay,
		onResult:  onResult,
	}
}

// Query schedules a lookup for text and returns its sequence number.
// A blank query cancels any pending lookup and clears the results.
func (s *CustomerSearch) Query(text string) uint64 {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.seq
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq++
	seq := s.seq

	if text == "" {
		s.latest = SearchResult{Seq: seq}
		return seq
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.latest = SearchResult{Seq: seq, Query: text, Pending: true}

	s.wg.Add(1)
	go s.run(ctx, seq, text)
	return seq
}

// Latest returns the newest result. Pending is set while a lookup for the
// newest query has not finished yet.
func (s *CustomerSearch) Latest() SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.latest
	out.Customers = append([]models.CustomerRef(nil), s.latest.Customers...)
	return out
}

// Close cancels outstanding work and waits for it to stop.
func (s *CustomerSearch) Close() {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *CustomerSearch) run(ctx context.Context, seq uint64, text string) {
	defer s.wg.Done()

	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	customers, err := s.directory.SearchCustomers(ctx, text)

	s.mu.Lock()
	if seq != s.seq || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.latest = SearchResult{Seq: seq, Query: text, Customers: customers, Err: err}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	result := s.latest
	s.mu.Unlock()

	if s.onResult != nil {
		s.onResult(result)
	}
}
