package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yaya56vv/cortex/internal/cache"
	"github.com/yaya56vv/cortex/internal/rag/embeddings"
	"github.com/yaya56vv/cortex/pkg/models"
)

// Buckets of the session tree under the store root.
const (
	bucketActive   = "active"
	bucketArchive  = "archive"
	bucketProjects = "projects"
	bucketTests    = "tests"
)

const (
	// maxMessagesPerSession bounds a session's log; the oldest messages are
	// truncated once it overflows.
	maxMessagesPerSession = 1000

	// archiveAfter is how long an active session may idle before the sweep
	// moves it into its archive month.
	archiveAfter = 7 * 24 * time.Hour

	defaultContextMessages = 5
	defaultSearchTopK      = 5

	// testSessionPrefix routes throwaway sessions into the tests bucket.
	testSessionPrefix = "test_"

	sessionVectorCacheSize = 1024
)

// FileStoreConfig assembles a FileStore.
type FileStoreConfig struct {
	// Dir is the root of the session tree. Required.
	Dir string

	// Embedder enables similarity ranking in Search. Optional; without it
	// Search falls back to substring matching alone.
	Embedder embeddings.Provider

	// LockTimeout bounds waiting on a session lock. Defaults to 10s.
	LockTimeout time.Duration

	// Logger receives store logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// FileStore keeps one JSON document per session, organized into active,
// archive, projects and tests buckets. All writes to a session happen under
// that session's lock and land atomically via temp-file rename.
type FileStore struct {
	dir      string
	embedder embeddings.Provider
	logger   *slog.Logger
	locks    *lockManager
	vectors  *cache.Vectors

	now func() time.Time
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens (creating if needed) the session tree rooted at cfg.Dir.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("sessions: dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Join(cfg.Dir, bucketActive), 0o755); err != nil {
		return nil, fmt.Errorf("create session tree: %w", err)
	}
	return &FileStore{
		dir:      cfg.Dir,
		embedder: cfg.Embedder,
		logger:   cfg.Logger.With("component", "sessions"),
		locks:    newLockManager(cfg.LockTimeout),
		vectors:  cache.NewVectors(sessionVectorCacheSize),
		now:      time.Now,
	}, nil
}

// AddMessage appends a message to the session, creating the session file on
// first write. A zero timestamp is stamped with the current time; messages
// past the per-session cap are dropped oldest-first.
func (s *FileStore) AddMessage(ctx context.Context, sessionID string, msg models.SessionMessage) error {
	id := SanitizeID(sessionID)
	release, err := s.locks.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	now := s.now().UTC()
	var session *models.Session
	var path string
	if p, _, ok := s.locate(id); ok {
		session, err = s.load(p)
		if err != nil {
			return err
		}
		path = p
	} else {
		path = filepath.Join(s.dir, s.bucketFor(id, msg.Metadata), id+".json")
		session = &models.Session{SessionID: id, CreatedAt: now}
	}

	if msg.Role == "" {
		msg.Role = models.RoleUser
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	msg.Timestamp = msg.Timestamp.UTC()
	session.Messages = append(session.Messages, msg)
	if overflow := len(session.Messages) - maxMessagesPerSession; overflow > 0 {
		session.Messages = session.Messages[overflow:]
	}
	session.UpdatedAt = now
	return s.save(path, session)
}

// Messages returns the session's messages, the most recent limit of them when
// limit is positive. Unknown sessions yield an empty slice, not an error.
func (s *FileStore) Messages(ctx context.Context, sessionID string, limit int) ([]models.SessionMessage, error) {
	id := SanitizeID(sessionID)
	release, err := s.locks.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	path, _, ok := s.locate(id)
	if !ok {
		return []models.SessionMessage{}, nil
	}
	session, err := s.load(path)
	if err != nil {
		return nil, err
	}
	msgs := session.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// Context renders the tail of the conversation as prompt-ready text, one
// "[role] content" line per message, oldest first.
func (s *FileStore) Context(ctx context.Context, sessionID string, maxMessages int) (string, error) {
	if maxMessages <= 0 {
		maxMessages = defaultContextMessages
	}
	msgs, err := s.Messages(ctx, sessionID, maxMessages)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	return b.String(), nil
}

// Get returns the full session document, or nil when the session does not
// exist.
func (s *FileStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	id := SanitizeID(sessionID)
	release, err := s.locks.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	path, _, ok := s.locate(id)
	if !ok {
		return nil, nil
	}
	return s.load(path)
}

// Clear deletes the session file. The bool reports whether one existed.
func (s *FileStore) Clear(ctx context.Context, sessionID string) (bool, error) {
	id := SanitizeID(sessionID)
	release, err := s.locks.Acquire(ctx, id)
	if err != nil {
		return false, err
	}
	defer release()

	path, _, ok := s.locate(id)
	if !ok {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("remove session %s: %w", id, err)
	}
	s.logger.Info("session cleared", "session_id", id)
	return true, nil
}

// List enumerates sessions, newest activity first. A non-empty category
// restricts the listing to one bucket ("active", "archive/2025-08",
// "projects/demo", ...); a bare parent like "archive" matches all its months.
func (s *FileStore) List(ctx context.Context, category string) ([]models.SessionInfo, error) {
	category = strings.Trim(strings.TrimSpace(category), "/")
	var infos []models.SessionInfo
	s.walk(func(path, location string) {
		if category != "" && location != category && !strings.HasPrefix(location, category+"/") {
			return
		}
		session, err := s.load(path)
		if err != nil {
			s.logger.Warn("skipping unreadable session file", "path", path, "error", err)
			return
		}
		infos = append(infos, models.SessionInfo{
			SessionID:    session.SessionID,
			Location:     location,
			MessageCount: len(session.Messages),
			UpdatedAt:    session.UpdatedAt,
		})
	})
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].UpdatedAt.Equal(infos[j].UpdatedAt) {
			return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
		}
		return infos[i].SessionID < infos[j].SessionID
	})
	return infos, nil
}

// ArchiveSweep moves active sessions idle for longer than a week into their
// archive month (archive/YYYY-MM by last update). Moves are plain renames
// taken under the session lock; it returns how many sessions moved.
func (s *FileStore) ArchiveSweep(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, bucketActive))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	cutoff := s.now().UTC().Add(-archiveAfter)
	moved := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		n, err := s.archiveOne(ctx, id, cutoff)
		if err != nil {
			s.logger.Warn("archiving session failed", "session_id", id, "error", err)
			continue
		}
		moved += n
	}
	if moved > 0 {
		s.logger.Info("sessions archived", "moved", moved)
	}
	return moved, nil
}

func (s *FileStore) archiveOne(ctx context.Context, id string, cutoff time.Time) (int, error) {
	release, err := s.locks.Acquire(ctx, id)
	if err != nil {
		return 0, err
	}
	defer release()

	path := filepath.Join(s.dir, bucketActive, id+".json")
	session, err := s.load(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Cleared or already moved while we waited for the lock.
			return 0, nil
		}
		return 0, err
	}
	if !session.UpdatedAt.Before(cutoff) {
		return 0, nil
	}
	month := session.UpdatedAt.UTC().Format("2006-01")
	destDir := filepath.Join(s.dir, bucketArchive, month)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, err
	}
	if err := os.Rename(path, filepath.Join(destDir, id+".json")); err != nil {
		return 0, err
	}
	return 1, nil
}

// bucketFor picks where a session's first write lands: test_ ids go to the
// tests bucket, a project name in the first message's metadata selects a
// projects subdirectory, everything else starts in active.
func (s *FileStore) bucketFor(id string, metadata map[string]any) string {
	if strings.HasPrefix(id, testSessionPrefix) {
		return bucketTests
	}
	if project, ok := metadata["project"].(string); ok && strings.TrimSpace(project) != "" {
		return filepath.Join(bucketProjects, SanitizeID(project))
	}
	return bucketActive
}

// locate finds the session file across buckets. The location is the
// bucket-relative directory, e.g. "active" or "archive/2025-08".
func (s *FileStore) locate(id string) (path, location string, ok bool) {
	name := id + ".json"
	for _, bucket := range []string{bucketActive, bucketTests} {
		p := filepath.Join(s.dir, bucket, name)
		if fileExists(p) {
			return p, bucket, true
		}
	}
	for _, parent := range []string{bucketProjects, bucketArchive} {
		entries, err := os.ReadDir(filepath.Join(s.dir, parent))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			p := filepath.Join(s.dir, parent, entry.Name(), name)
			if fileExists(p) {
				return p, parent + "/" + entry.Name(), true
			}
		}
	}
	return "", "", false
}

// walk visits every session file with its bucket-relative location.
func (s *FileStore) walk(visit func(path, location string)) {
	_ = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return nil
		}
		visit(path, filepath.ToSlash(filepath.Dir(rel)))
		return nil
	})
}

func (s *FileStore) load(path string) (*models.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", filepath.Base(path), err)
	}
	return &session, nil
}

func (s *FileStore) save(path string, session *models.Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.SessionID, err)
	}
	return writeFileAtomic(path, data, 0o644)
}

// writeFileAtomic writes through a temp file and rename so a concurrent
// reader never observes a torn session document.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
