// Package store implements the post record store: the single mutable,
// shared resource in the engine. It owns Post and Account lifetimes;
// everything downstream is a derived view rebuilt from a point-in-time
// snapshot of the store's rolling window.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/trendai/narrative-engine/internal/core/domain"
	engerrors "github.com/trendai/narrative-engine/internal/core/errors"
	"github.com/trendai/narrative-engine/internal/platform/observability"
)

const postingRateWindow = 24 * time.Hour

// AccountInfo carries the account metadata that rides along with each
// ingested post. Zero values leave the existing account record untouched.
type AccountInfo struct {
	Handle         string
	AccountAgeDays int
	FollowerCount  int
}

// Snapshot is a point-in-time copy of one narrative's window. Posts are
// ordered by timestamp ascending and the slices are owned by the snapshot,
// so a pass can iterate them repeatedly while appends and eviction proceed.
type Snapshot struct {
	NarrativeID string
	Posts       []domain.Post
	Accounts    map[string]domain.Account
	TakenAt     time.Time
}

// Store holds normalized post records keyed by narrative.
type Store struct {
	mu sync.RWMutex

	window    time.Duration
	skew      time.Duration
	clock     func() time.Time
	logger    *zerolog.Logger
	posts     map[string][]domain.Post
	postIDs   map[string]map[string]struct{}
	accounts  map[string]*domain.Account
	postTimes map[string][]time.Time
}

// New creates a store with the given rolling window and clock-skew tolerance.
func New(window, skew time.Duration, logger *zerolog.Logger) *Store {
	return &Store{
		window:    window,
		skew:      skew,
		clock:     time.Now,
		logger:    logger,
		posts:     make(map[string][]domain.Post),
		postIDs:   make(map[string]map[string]struct{}),
		accounts:  make(map[string]*domain.Account),
		postTimes: make(map[string][]time.Time),
	}
}

// SetClock overrides the time source. Test hook.
func (s *Store) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Append validates and stores a post, updating the author's rolling counters.
// Posts are immutable once stored; a duplicate post ID is rejected.
func (s *Store) Append(post domain.Post, info AccountInfo) error {
	if err := s.validate(post); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.postIDs[post.NarrativeID]
	if !ok {
		ids = make(map[string]struct{})
		s.postIDs[post.NarrativeID] = ids
	}

	if _, exists := ids[post.ID]; exists {
		return fmt.Errorf("%w: duplicate post id %s", engerrors.ErrInvalidPost, post.ID)
	}

	ids[post.ID] = struct{}{}
	s.posts[post.NarrativeID] = append(s.posts[post.NarrativeID], post)
	s.touchAccount(post, info)

	observability.PostsIngested.WithLabelValues(post.NarrativeID).Inc()

	return nil
}

func (s *Store) validate(post domain.Post) error {
	if post.ID == "" {
		return fmt.Errorf("%w: empty post id", engerrors.ErrInvalidPost)
	}

	if post.NarrativeID == "" {
		return fmt.Errorf("%w: empty narrative id", engerrors.ErrInvalidPost)
	}

	if post.AccountID == "" {
		return fmt.Errorf("%w: empty account id", engerrors.ErrInvalidPost)
	}

	if post.Timestamp.After(s.clock().Add(s.skew)) {
		return fmt.Errorf("%w: %s: %s", engerrors.ErrInvalidPost, engerrors.ErrFutureTimestamp, post.Timestamp.UTC().Format(time.RFC3339))
	}

	return nil
}

func (s *Store) touchAccount(post domain.Post, info AccountInfo) {
	acct, ok := s.accounts[post.AccountID]
	if !ok {
		acct = &domain.Account{ID: post.AccountID}
		s.accounts[post.AccountID] = acct
	}

	if info.Handle != "" {
		acct.Handle = info.Handle
	}

	if info.AccountAgeDays > 0 {
		acct.AccountAgeDays = info.AccountAgeDays
	}

	if info.FollowerCount > 0 {
		acct.FollowerCount = info.FollowerCount
	}

	if post.Timestamp.After(acct.LastSeen) {
		acct.LastSeen = post.Timestamp
	}

	s.postTimes[post.AccountID] = append(s.postTimes[post.AccountID], post.Timestamp)
}

// Window returns a snapshot of one narrative's posts within the duration,
// ordered by timestamp ascending. The snapshot is a copy: callers can
// iterate it any number of times without observing later appends.
func (s *Store) Window(narrativeID string, duration time.Duration) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock()
	cutoff := now.Add(-duration)

	snap := Snapshot{
		NarrativeID: narrativeID,
		Accounts:    make(map[string]domain.Account),
		TakenAt:     now,
	}

	for _, post := range s.posts[narrativeID] {
		if post.Timestamp.Before(cutoff) {
			continue
		}

		snap.Posts = append(snap.Posts, post)
	}

	sort.SliceStable(snap.Posts, func(i, j int) bool {
		return snap.Posts[i].Timestamp.Before(snap.Posts[j].Timestamp)
	})

	for _, post := range snap.Posts {
		if _, ok := snap.Accounts[post.AccountID]; ok {
			continue
		}

		acct := *s.accounts[post.AccountID]
		acct.PostingRateLast24 = s.postingRateLocked(post.AccountID, now)
		snap.Accounts[post.AccountID] = acct
	}

	return snap
}

// postingRateLocked computes posts/hour over the trailing 24h. Caller holds mu.
func (s *Store) postingRateLocked(accountID string, now time.Time) float64 {
	cutoff := now.Add(-postingRateWindow)
	count := 0

	for _, ts := range s.postTimes[accountID] {
		if !ts.Before(cutoff) {
			count++
		}
	}

	return float64(count) / postingRateWindow.Hours()
}

// Narratives returns the IDs of all narratives with at least one stored post.
func (s *Store) Narratives() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.posts))
	for id := range s.posts {
		if len(s.posts[id]) > 0 {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	return ids
}

// Evict drops posts older than the rolling window. Snapshots already taken
// are copies, so an in-flight pass never observes the eviction. Accounts are
// retained while any live post references them.
func (s *Store) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	cutoff := now.Add(-s.window)
	evicted := 0

	for narrativeID, posts := range s.posts {
		kept := posts[:0]

		for _, post := range posts {
			if post.Timestamp.Before(cutoff) {
				delete(s.postIDs[narrativeID], post.ID)

				evicted++

				continue
			}

			kept = append(kept, post)
		}

		if len(kept) == 0 {
			delete(s.posts, narrativeID)
			delete(s.postIDs, narrativeID)

			continue
		}

		s.posts[narrativeID] = kept
	}

	// Posting timestamps must survive the full 24h rate horizon even when
	// the rolling window is shorter.
	rateCutoff := now.Add(-postingRateWindow)
	if cutoff.Before(rateCutoff) {
		rateCutoff = cutoff
	}

	s.pruneAccountsLocked(rateCutoff)

	if evicted > 0 {
		s.logger.Debug().Int("evicted", evicted).Msg("evicted posts outside rolling window")
		observability.PostsEvicted.Add(float64(evicted))
	}

	return evicted
}

// pruneAccountsLocked drops posting timestamps older than the rate horizon
// and removes accounts no live post references. Caller holds mu.
func (s *Store) pruneAccountsLocked(cutoff time.Time) {
	referenced := make(map[string]struct{})

	for _, posts := range s.posts {
		for _, post := range posts {
			referenced[post.AccountID] = struct{}{}
		}
	}

	for accountID, times := range s.postTimes {
		if _, ok := referenced[accountID]; !ok {
			delete(s.postTimes, accountID)
			delete(s.accounts, accountID)

			continue
		}

		kept := times[:0]

		for _, ts := range times {
			if !ts.Before(cutoff) {
				kept = append(kept, ts)
			}
		}

		s.postTimes[accountID] = kept
	}
}
