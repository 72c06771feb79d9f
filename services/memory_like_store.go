package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"vibin_notifier/models"

	"github.com/sirupsen/logrus"
)

const memorySubscriptionBuffer = 256

// MemoryLikeStore keeps like records in process. It backs STORE_BACKEND=memory and the tests.
type MemoryLikeStore struct {
	mu      sync.Mutex
	records map[string]models.LikeRecord
	subs    map[int]*memorySubscription
	nextSub int

	// Fail, when set, is consulted before every operation and can inject errors.
	Fail func(op, id string) error
}

type memorySubscription struct {
	filter  LikeFilter
	changes chan models.LikeRecord
	done    chan struct{}
	once    sync.Once
}

var _ LikeStore = (*MemoryLikeStore)(nil)

func NewMemoryLikeStore() *MemoryLikeStore {
	return &MemoryLikeStore{
		records: make(map[string]models.LikeRecord),
		subs:    make(map[int]*memorySubscription),
	}
}

func (s *MemoryLikeStore) inject(op, id string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op, id)
}

func (s *MemoryLikeStore) Get(ctx context.Context, id string) (*models.LikeRecord, error) {
	if err := s.inject("get", id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (s *MemoryLikeStore) Create(ctx context.Context, like models.LikeRecord) (bool, error) {
	if err := s.inject("create", like.ID); err != nil {
		return false, err
	}
	if err := like.Validate(); err != nil {
		return false, &StoreError{Kind: KindInvariant, Op: "create", Err: err}
	}

	s.mu.Lock()
	if _, exists := s.records[like.ID]; exists {
		s.mu.Unlock()
		return false, nil
	}
	s.records[like.ID] = like
	s.publishLocked(like)
	s.mu.Unlock()
	return true, nil
}

func (s *MemoryLikeStore) Filter(ctx context.Context, filter LikeFilter) ([]models.LikeRecord, error) {
	if err := s.inject("filter", ""); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.LikeRecord
	for _, record := range s.records {
		if filter.Matches(record) {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryLikeStore) Update(ctx context.Context, id string, patch LikePatch, cond *Condition) (UpdateResult, error) {
	if err := s.inject("update", id); err != nil {
		return UpdateNoop, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return UpdateNoop, ErrNotFound
	}
	if cond != nil {
		current, err := flagValue(record, cond.Field)
		if err != nil {
			return UpdateNoop, &StoreError{Kind: KindInvariant, Op: "update", Err: err}
		}
		if current != cond.Equals {
			return UpdateNoop, nil
		}
	}
	for field, value := range patch {
		if err := setFlag(&record, field, value); err != nil {
			return UpdateNoop, &StoreError{Kind: KindInvariant, Op: "update", Err: err}
		}
	}
	s.records[id] = record
	s.publishLocked(record)
	return UpdateApplied, nil
}

// Subscribe starts one delivery goroutine per subscription so callbacks never run under the store lock.
func (s *MemoryLikeStore) Subscribe(ctx context.Context, filter LikeFilter, onChange func(models.LikeRecord)) (Unsubscribe, error) {
	sub := &memorySubscription{
		filter:  filter,
		changes: make(chan models.LikeRecord, memorySubscriptionBuffer),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case record := <-sub.changes:
				select {
				case <-sub.done:
					return
				default:
				}
				onChange(record)
			}
		}
	}()

	return func() {
		sub.once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(sub.done)
		})
	}, nil
}

// Subscribers reports how many subscriptions are open.
func (s *MemoryLikeStore) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *MemoryLikeStore) publishLocked(record models.LikeRecord) {
	for _, sub := range s.subs {
		if !sub.filter.Matches(record) {
			continue
		}
		select {
		case sub.changes <- record:
		default:
			logrus.WithField("likeId", record.ID).Warn("⚠️ Subscriber buffer full, dropping change")
		}
	}
}

func flagValue(record models.LikeRecord, field string) (bool, error) {
	switch field {
	case models.FieldIsMutual:
		return record.IsMutual, nil
	case models.FieldLikerNotified:
		return record.LikerNotified, nil
	case models.FieldLikedNotified:
		return record.LikedNotified, nil
	}
	return false, fmt.Errorf("unknown flag %q", field)
}

// setFlag refuses to clear a flag; every flag only ever moves false to true.
func setFlag(record *models.LikeRecord, field string, value bool) error {
	if !value {
		return fmt.Errorf("flag %q cannot be cleared", field)
	}
	switch field {
	case models.FieldIsMutual:
		record.IsMutual = true
	case models.FieldLikerNotified:
		record.LikerNotified = true
	case models.FieldLikedNotified:
		record.LikedNotified = true
	default:
		return fmt.Errorf("unknown flag %q", field)
	}
	return nil
}
