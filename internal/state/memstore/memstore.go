// Package memstore is an in-process implementation of the content store,
// claim log and execution log. It deliberately has no uniqueness constraint
// on claims unless WithUniqueClaims is given.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/user/forumbot/internal/types"
)

// Vote is a recorded poll vote.
type Vote struct {
	PollID   string
	OptionID int64
	UserID   string
}

// Deletion is a recorded DeleteRow call.
type Deletion struct {
	Table string
	ID    string
}

type comment struct {
	ID       string
	AuthorID string
}

// Store keeps every table in memory behind one mutex.
type Store struct {
	mu sync.Mutex

	uniqueClaims bool
	lastClaimAt  time.Time
	nextOption   int64

	profiles   map[string]*types.Profile
	posts      map[string]*types.Post
	postOrder  []string
	comments   []comment
	threads    map[string]*types.Thread
	polls      map[string]*types.Poll
	pollByPost map[string]string
	settings   map[string]string

	votes      []Vote
	replies    []types.ReplyRow
	deletions  []Deletion
	claims     []*types.ClaimRecord
	claimCalls int
	executions []*types.ExecutionEntry
}

// Option configures a Store.
type Option func(*Store)

// WithUniqueClaims makes InsertClaim reject a second claim for a trigger id
// with types.ErrDuplicateClaim.
func WithUniqueClaims() Option {
	return func(s *Store) { s.uniqueClaims = true }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		profiles:   make(map[string]*types.Profile),
		posts:      make(map[string]*types.Post),
		threads:    make(map[string]*types.Thread),
		polls:      make(map[string]*types.Poll),
		pollByPost: make(map[string]string),
		settings:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seeding helpers.

func (s *Store) AddProfile(id, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[id] = &types.Profile{ID: id, Username: username}
}

func (s *Store) AddPost(p types.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.posts[p.ID] = &cp
	s.postOrder = append(s.postOrder, p.ID)
}

func (s *Store) AddComment(id, authorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = append(s.comments, comment{ID: id, AuthorID: authorID})
}

func (s *Store) AddThread(t types.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := t
	s.threads[t.ID] = &cp
}

// AddPoll attaches a poll with the given options to postID and returns it.
func (s *Store) AddPoll(postID, question string, options ...string) *types.Poll {
	s.mu.Lock()
	defer s.mu.Unlock()
	poll := &types.Poll{ID: types.NewRowID(), PostID: postID, Question: question}
	s.polls[poll.ID] = poll
	s.pollByPost[postID] = poll.ID
	s.appendOptions(poll, options)
	return clonePoll(poll)
}

func (s *Store) SetSettings(settings map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = make(map[string]string, len(settings))
	for k, v := range settings {
		s.settings[k] = v
	}
}

// Inspection helpers.

func (s *Store) Replies() []types.ReplyRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.replies)
}

func (s *Store) Votes() []Vote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.votes)
}

func (s *Store) Deletions() []Deletion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deletions)
}

// Claims returns a copy of every claim record in insertion order.
func (s *Store) Claims() []types.ClaimRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ClaimRecord, len(s.claims))
	for i, c := range s.claims {
		out[i] = *c
	}
	return out
}

// ClaimWrites counts InsertClaim calls, including rejected ones.
func (s *Store) ClaimWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimCalls
}

func (s *Store) Executions() []types.ExecutionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ExecutionEntry, len(s.executions))
	for i, e := range s.executions {
		out[i] = *e
	}
	return out
}

// Posts returns the posts in insertion order.
func (s *Store) Posts() []types.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Post, 0, len(s.postOrder))
	for _, id := range s.postOrder {
		if p, ok := s.posts[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// ContentStore.

func (s *Store) Profile(_ context.Context, userID string) (*types.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) RecentPostsByAuthor(_ context.Context, authorID string, limit int) ([]types.PostSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.PostSummary
	for i := len(s.postOrder) - 1; i >= 0 && len(out) < limit; i-- {
		p, ok := s.posts[s.postOrder[i]]
		if !ok || p.AuthorID != authorID {
			continue
		}
		out = append(out, types.PostSummary{ID: p.ID, Title: p.Title, Tags: slices.Clone(p.Tags)})
	}
	return out, nil
}

func (s *Store) CountCommentsByAuthor(_ context.Context, authorID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.comments {
		if c.AuthorID == authorID {
			n++
		}
	}
	return n, nil
}

func (s *Store) Post(_ context.Context, id string) (*types.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) Thread(_ context.Context, id string) (*types.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) PollForPost(_ context.Context, postID string) (*types.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.pollByPost[postID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return clonePoll(s.polls[id]), nil
}

func (s *Store) Settings(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

func (s *Store) InsertPost(_ context.Context, post types.NewPost) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := types.NewRowID()
	s.posts[id] = &types.Post{
		ID:          id,
		Title:       post.Title,
		Description: post.Description,
		Tags:        slices.Clone(post.Tags),
		AuthorID:    post.AuthorID,
	}
	s.postOrder = append(s.postOrder, id)
	return id, nil
}

func (s *Store) InsertPoll(_ context.Context, poll types.NewPoll) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[poll.PostID]; !ok {
		return "", fmt.Errorf("insert poll: post %s: %w", poll.PostID, types.ErrNotFound)
	}
	p := &types.Poll{ID: types.NewRowID(), PostID: poll.PostID, Question: poll.Question}
	s.polls[p.ID] = p
	s.pollByPost[poll.PostID] = p.ID
	return p.ID, nil
}

func (s *Store) InsertPollOptions(_ context.Context, pollID string, options []string) ([]types.PollOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[pollID]
	if !ok {
		return nil, fmt.Errorf("insert options: poll %s: %w", pollID, types.ErrNotFound)
	}
	start := len(poll.Options)
	s.appendOptions(poll, options)
	return slices.Clone(poll.Options[start:]), nil
}

func (s *Store) HasVoted(_ context.Context, pollID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.votes {
		if v.PollID == pollID && v.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) InsertVote(_ context.Context, pollID string, optionID int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.polls[pollID]; !ok {
		return fmt.Errorf("insert vote: poll %s: %w", pollID, types.ErrNotFound)
	}
	s.votes = append(s.votes, Vote{PollID: pollID, OptionID: optionID, UserID: userID})
	return nil
}

func (s *Store) IncrementOptionVotes(_ context.Context, optionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, poll := range s.polls {
		for i := range poll.Options {
			if poll.Options[i].ID == optionID {
				poll.Options[i].VotesCount++
				return nil
			}
		}
	}
	return fmt.Errorf("increment votes: option %d: %w", optionID, types.ErrNotFound)
}

func (s *Store) DeleteRow(_ context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch table {
	case types.TablePosts:
		delete(s.posts, id)
	case types.TableThreads:
		delete(s.threads, id)
	case types.TableComments:
		s.comments = slices.DeleteFunc(s.comments, func(c comment) bool { return c.ID == id })
	}
	s.deletions = append(s.deletions, Deletion{Table: table, ID: id})
	return nil
}

func (s *Store) InsertReply(_ context.Context, reply types.ReplyRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, reply)
	if reply.Table == types.TableComments {
		s.comments = append(s.comments, comment{ID: types.NewRowID(), AuthorID: reply.AuthorID})
	}
	return nil
}

// ClaimLog.

func (s *Store) InsertClaim(_ context.Context, rec *types.ClaimRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimCalls++
	if s.uniqueClaims {
		for _, c := range s.claims {
			if c.TriggerID == rec.TriggerID {
				return types.ErrDuplicateClaim
			}
		}
	}
	// Strictly increasing timestamps so insertion order decides the winner.
	now := time.Now()
	if !now.After(s.lastClaimAt) {
		now = s.lastClaimAt.Add(time.Nanosecond)
	}
	s.lastClaimAt = now
	rec.CreatedAt = now
	cp := *rec
	s.claims = append(s.claims, &cp)
	return nil
}

func (s *Store) EarliestClaims(_ context.Context, triggerID types.TriggerID, limit int) ([]*types.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*types.ClaimRecord
	for _, c := range s.claims {
		if c.TriggerID == triggerID {
			cp := *c
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) ClaimExists(_ context.Context, triggerID types.TriggerID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.claims {
		if c.TriggerID == triggerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdateClaimOutput(_ context.Context, id types.ClaimID, output string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.claims {
		if c.ID == id {
			c.OutputText = output
			return nil
		}
	}
	return fmt.Errorf("update claim %s: %w", id, types.ErrNotFound)
}

func (s *Store) DeleteClaim(_ context.Context, id types.ClaimID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims = slices.DeleteFunc(s.claims, func(c *types.ClaimRecord) bool { return c.ID == id })
	return nil
}

func (s *Store) StaleClaims(_ context.Context, output string, olderThan time.Time) ([]*types.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.ClaimRecord
	for _, c := range s.claims {
		if c.OutputText == output && c.CreatedAt.Before(olderThan) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ExecutionLog.

func (s *Store) AppendExecution(_ context.Context, entry *types.ExecutionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.executions = append(s.executions, &cp)
	return nil
}

func (s *Store) appendOptions(poll *types.Poll, options []string) {
	for _, text := range options {
		s.nextOption++
		poll.Options = append(poll.Options, types.PollOption{ID: s.nextOption, PollID: poll.ID, Text: text})
	}
}

func clonePoll(p *types.Poll) *types.Poll {
	cp := *p
	cp.Options = slices.Clone(p.Options)
	return &cp
}

