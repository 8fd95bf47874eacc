package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/koscakluka/xperto/core/conversation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	fileExtension   = ".json"
	sessionIDLayout = "20060102_150405"
)

type StoreOptions struct {
	Now func() time.Time
}

type StoreOption func(*StoreOptions)

func WithClock(now func() time.Time) StoreOption {
	return func(o *StoreOptions) {
		o.Now = now
	}
}

// Store keeps session records as JSON files in a single directory.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string, opts ...StoreOption) (*Store, error) {
	options := StoreOptions{Now: time.Now}
	for _, opt := range opts {
		opt(&options)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &Store{dir: dir, now: options.Now}, nil
}

func (s *Store) Dir() string { return s.dir }

// NewSessionID names a session after its start time and the config used.
func (s *Store) NewSessionID(configName string) string {
	if configName == "" {
		configName = "default"
	}
	return s.now().Format(sessionIDLayout) + "_" + configName
}

// Save writes the snapshot under id. The file is replaced atomically so a
// crash never leaves a half written record behind.
func (s *Store) Save(ctx context.Context, id, configName string, participants int, snapshot conversation.Snapshot) (string, error) {
	_, span := tracer.Start(ctx, "save session")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", id),
		attribute.Int("session.messages", len(snapshot.Messages)),
	)

	now := s.now()
	record := Record{
		SessionID:        id,
		Timestamp:        now,
		ConfigUsed:       configName,
		ParticipantCount: participants,
		MessageCount:     len(snapshot.Messages),
		Messages:         snapshot.Messages,
		Tools:            snapshot.Tools,
		Metadata:         Metadata{SavedAt: now, Version: FormatVersion},
	}
	if record.Messages == nil {
		record.Messages = []conversation.Message{}
	}
	if record.Tools == nil {
		record.Tools = []conversation.ToolSchema{}
	}

	path, err := s.write(id, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	logger.Info("session saved", "session_id", id, "path", path, "messages", record.MessageCount)
	return path, nil
}

func (s *Store) write(id string, record Record) (string, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode session %s: %w", id, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+id+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write session %s: %w", id, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to sync session %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close session %s: %w", id, err)
	}

	path := filepath.Join(s.dir, id+fileExtension)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move session %s into place: %w", id, err)
	}
	return path, nil
}

// Load reads the session whose id equals query, or else the only session
// whose id contains it.
func (s *Store) Load(ctx context.Context, query string) (*Record, error) {
	_, span := tracer.Start(ctx, "load session")
	defer span.End()
	span.SetAttributes(attribute.String("session.query", query))

	path, err := s.resolve(query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	record, err := readRecord(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	logger.Info("session loaded", "session_id", record.SessionID, "messages", len(record.Messages))
	return record, nil
}

func (s *Store) resolve(query string) (string, error) {
	if query == "" {
		return "", fmt.Errorf("%w: empty session id", ErrSessionNotFound)
	}
	// Ids are plain file stems; anything path-like would escape the directory.
	if strings.ContainsAny(query, `/\`) || strings.Contains(query, "..") {
		return "", fmt.Errorf("%w: invalid session id %q", ErrSessionNotFound, query)
	}

	exact := filepath.Join(s.dir, query+fileExtension)
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}

	ids, err := s.ids()
	if err != nil {
		return "", err
	}
	var matches []string
	for _, id := range ids {
		if strings.Contains(id, query) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, query)
	case 1:
		return filepath.Join(s.dir, matches[0]+fileExtension), nil
	default:
		return "", &AmbiguousMatchError{Query: query, Matches: matches}
	}
}

func (s *Store) ids() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != fileExtension {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileExtension))
	}
	sort.Strings(ids)
	return ids, nil
}

// List returns every readable session, newest first. Unreadable files are
// skipped with a warning.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	_, span := tracer.Start(ctx, "list sessions")
	defer span.End()

	ids, err := s.ids()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	infos := make([]Info, 0, len(ids))
	for _, id := range ids {
		path := filepath.Join(s.dir, id+fileExtension)
		record, err := readRecord(path)
		if err != nil {
			logger.Warn("failed to read session file", "path", path, "error", err)
			continue
		}
		infos = append(infos, Info{
			SessionID:        record.SessionID,
			Timestamp:        record.Timestamp,
			ParticipantCount: record.ParticipantCount,
			MessageCount:     record.MessageCount,
			ConfigUsed:       record.ConfigUsed,
			Path:             path,
		})
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})
	span.SetAttributes(attribute.Int("sessions.count", len(infos)))
	return infos, nil
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("malformed session file %s: %w", filepath.Base(path), err)
	}
	if record.SessionID == "" {
		return nil, fmt.Errorf("malformed session file %s: missing session id", filepath.Base(path))
	}
	return &record, nil
}
