// Package bank is the question store: an in-memory ordered collection loaded
// from a backing store at startup and written back after every edit.
package bank

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"trivia-session-service/internal/domain"
)

// Loader fetches the full question bank from a backing store.
type Loader interface {
	LoadAll(ctx context.Context) ([]domain.Question, error)
}

// Writer persists the full question bank after a mutation.
type Writer interface {
	SaveAll(ctx context.Context, questions []domain.Question) error
}

// Bank holds the questions ordered by id. The engine only reads; edits come
// from the admin command surface.
type Bank struct {
	writer Writer
	log    zerolog.Logger

	mu        sync.RWMutex
	questions []domain.Question
	index     map[int64]int
	nextID    int64
}

// Open loads the bank, dropping invalid rows rather than propagating them.
func Open(ctx context.Context, loader Loader, writer Writer, log zerolog.Logger) (*Bank, error) {
	loaded, err := loader.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}

	b := &Bank{writer: writer, log: log, index: make(map[int64]int), nextID: 1}
	for _, q := range loaded {
		if q.ID < 1 || !q.Valid() {
			log.Warn().Int64("id", q.ID).Msg("dropping invalid question at load")
			continue
		}
		if _, dup := b.index[q.ID]; dup {
			log.Warn().Int64("id", q.ID).Msg("dropping duplicate question id at load")
			continue
		}
		b.index[q.ID] = len(b.questions)
		b.questions = append(b.questions, q)
		if q.ID >= b.nextID {
			b.nextID = q.ID + 1
		}
	}
	return b, nil
}

// Lookup returns the question with the given id.
func (b *Bank) Lookup(id int64) (domain.Question, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pos, ok := b.index[id]
	if !ok {
		return domain.Question{}, false
	}
	return b.questions[pos], true
}

// FilterByTopic returns questions whose topic matches case-insensitively.
func (b *Bank) FilterByTopic(topic string) []domain.Question {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []domain.Question
	for _, q := range b.questions {
		if strings.EqualFold(strings.TrimSpace(q.Topic), strings.TrimSpace(topic)) {
			out = append(out, q)
		}
	}
	return out
}

// All returns every question in id order.
func (b *Bank) All() []domain.Question {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// Topics returns the distinct topics, sorted case-insensitively.
func (b *Bank) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[string]string)
	for _, q := range b.questions {
		key := strings.ToLower(strings.TrimSpace(q.Topic))
		if _, ok := seen[key]; !ok {
			seen[key] = strings.TrimSpace(q.Topic)
		}
	}
	topics := make([]string, 0, len(seen))
	for _, t := range seen {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		return strings.ToLower(topics[i]) < strings.ToLower(topics[j])
	})
	return topics
}

// Add validates and appends a question, assigning the next id.
func (b *Bank) Add(ctx context.Context, q domain.Question) (int64, error) {
	if q.Topic == "" {
		q.Topic = "General"
	}
	if !q.Valid() {
		return 0, fmt.Errorf("%w: need text and %d options with a correct index in range", domain.ErrInvalidQuestion, domain.OptionCount)
	}

	b.mu.Lock()
	q.ID = b.nextID
	b.nextID++
	b.index[q.ID] = len(b.questions)
	b.questions = append(b.questions, q)
	b.mu.Unlock()

	b.save(ctx)
	return q.ID, nil
}

// BulkAdd adds each question independently and reports per-item failures.
func (b *Bank) BulkAdd(ctx context.Context, questions []domain.Question) (added int, errs []error) {
	for i, q := range questions {
		if q.Topic == "" {
			q.Topic = "General"
		}
		if !q.Valid() {
			errs = append(errs, fmt.Errorf("item %d: %w", i+1, domain.ErrInvalidQuestion))
			continue
		}
		b.mu.Lock()
		q.ID = b.nextID
		b.nextID++
		b.index[q.ID] = len(b.questions)
		b.questions = append(b.questions, q)
		b.mu.Unlock()
		added++
	}
	if added > 0 {
		b.save(ctx)
	}
	return added, errs
}

// Edit replaces text, options, correct index and explanation while preserving
// the question's id and topic.
func (b *Bank) Edit(ctx context.Context, id int64, q domain.Question) error {
	b.mu.Lock()
	pos, ok := b.index[id]
	if !ok {
		b.mu.Unlock()
		return domain.ErrQuestionNotFound
	}
	q.ID = id
	q.Topic = b.questions[pos].Topic
	if !q.Valid() {
		b.mu.Unlock()
		return domain.ErrInvalidQuestion
	}
	b.questions[pos] = q
	b.mu.Unlock()

	b.save(ctx)
	return nil
}

// Remove deletes the given ids and reports which were removed and which were
// unknown.
func (b *Bank) Remove(ctx context.Context, ids []int64) (removed, missing []int64) {
	b.mu.Lock()
	for _, id := range ids {
		pos, ok := b.index[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		b.questions = append(b.questions[:pos], b.questions[pos+1:]...)
		delete(b.index, id)
		for i := pos; i < len(b.questions); i++ {
			b.index[b.questions[i].ID] = i
		}
		removed = append(removed, id)
	}
	b.mu.Unlock()

	if len(removed) > 0 {
		b.save(ctx)
	}
	return removed, missing
}

// save flushes the bank; persistence failures are logged, not surfaced, so an
// edit that already took effect in memory is never rolled back.
func (b *Bank) save(ctx context.Context) {
	b.mu.RLock()
	snapshot := make([]domain.Question, len(b.questions))
	copy(snapshot, b.questions)
	b.mu.RUnlock()

	if err := b.writer.SaveAll(ctx, snapshot); err != nil {
		b.log.Warn().Err(err).Msg("question bank flush failed; in-memory state kept")
	}
}
