package policy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultPolicyName is the second fallback tier: the shared policy
// file used when a session has no policy of its own.
const DefaultPolicyName = "dev-default"

// Store loads policies by session ID with caching and a three-tier
// fallback: <dir>/<session>.json, then <dir>/dev-default.json, then
// the built-in Default document. Missing files never fail a load;
// malformed files do.
type Store struct {
	dir    string
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]*cached

	watcher *fsnotify.Watcher
	done    chan struct{}
}

type cached struct {
	doc  *Document
	hash string
}

// NewStore creates a Store rooted at dir. A nil logger uses a no-op.
func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:    dir,
		logger: logger,
		cache:  make(map[string]*cached),
	}
}

// Load returns the policy for a session and its rules hash, walking
// the fallback tiers. The result is cached until the backing file
// changes or Invalidate is called.
func (s *Store) Load(sessionID string) (*Document, string, error) {
	s.mu.RLock()
	if c, ok := s.cache[sessionID]; ok {
		s.mu.RUnlock()
		return c.doc, c.hash, nil
	}
	s.mu.RUnlock()

	doc, err := s.loadTiers(sessionID)
	if err != nil {
		return nil, "", err
	}

	hash, err := doc.RulesHash()
	if err != nil {
		return nil, "", fmt.Errorf("hashing policy for session %s: %w", sessionID, err)
	}

	s.mu.Lock()
	s.cache[sessionID] = &cached{doc: doc, hash: hash}
	s.mu.Unlock()

	return doc, hash, nil
}

func (s *Store) loadTiers(sessionID string) (*Document, error) {
	if sessionID != "" {
		doc, err := Load(filepath.Join(s.dir, sessionID+".json"))
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	doc, err := Load(filepath.Join(s.dir, DefaultPolicyName+".json"))
	if err == nil {
		s.logger.Debug("session policy not found, using dev-default",
			zap.String("session_id", sessionID),
		)
		return doc, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	s.logger.Debug("no policy files found, using built-in default",
		zap.String("session_id", sessionID),
	)
	return Default(), nil
}

// Invalidate drops a session's cached policy. An empty session ID
// clears the whole cache.
func (s *Store) Invalidate(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID == "" {
		s.cache = make(map[string]*cached)
		return
	}
	delete(s.cache, sessionID)
}

// Watch invalidates cached policies when their files change on disk.
// Returns an error if the policy directory cannot be watched; the
// store still works without a watcher, edits just require Invalidate.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating policy watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching policy dir %s: %w", s.dir, err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				name := strings.TrimSuffix(filepath.Base(event.Name), ".json")
				if name == DefaultPolicyName {
					// Every session without its own file resolved
					// through dev-default, so drop everything.
					s.Invalidate("")
				} else {
					s.Invalidate(name)
				}
				s.logger.Info("policy file changed, cache invalidated",
					zap.String("file", event.Name),
					zap.String("op", event.Op.String()),
				)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("policy watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Close stops the watcher if one is running.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	<-s.done
	return err
}
