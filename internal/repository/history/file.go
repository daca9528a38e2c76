package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/shamu4life/helper-scripts/internal/config"
	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

// Repository defines persistence operations for cycle records.
type Repository interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, record *Record) error
}

// FileRepository persists the last record to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON history file.
	path string
	// mu protects concurrent access to the history file.
	mu sync.Mutex
}

// ErrNotFound is returned when no cycle has been recorded yet.
var ErrNotFound = errors.New("history not found")

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the history file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the last record from disk.
func (r *FileRepository) Load(_ context.Context) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read history file: %w", err)
	}

	var doc structpb.Struct
	if err = protojson.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode history file: %w", err)
	}

	return fromProto(&doc), nil
}

// Save writes the record next to the final path and renames it into place.
func (r *FileRepository) Save(_ context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := toProto(record)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write history file: %w", err)
	}

	return nil
}

// fromProto converts the stored document into a Record.
func fromProto(doc *structpb.Struct) *Record {
	fields := doc.GetFields()

	str := func(key string) string {
		return fields[key].GetStringValue()
	}

	at := func(key string) time.Time {
		ts, err := time.Parse(time.RFC3339Nano, str(key))
		if err != nil {
			return time.Time{}
		}

		return ts
	}

	return &Record{
		RunID:            str("run_id"),
		Service:          str("service"),
		Outcome:          release.Kind(str("outcome")),
		Stage:            release.Stage(str("stage")),
		OldVersion:       str("old_version"),
		NewVersion:       str("new_version"),
		Error:            str("error"),
		ExitCode:         int(fields["exit_code"].GetNumberValue()),
		StartedAt:        at("started_at"),
		FinishedAt:       at("finished_at"),
		InstalledVersion: str("installed_version"),
	}
}

// toProto converts a Record into a protobuf Struct.
func toProto(record *Record) (*structpb.Struct, error) {
	fields := map[string]any{
		"run_id":            record.RunID,
		"service":           record.Service,
		"outcome":           string(record.Outcome),
		"exit_code":         record.ExitCode,
		"installed_version": record.InstalledVersion,
	}

	optional := map[string]string{
		"stage":       string(record.Stage),
		"old_version": record.OldVersion,
		"new_version": record.NewVersion,
		"error":       record.Error,
	}

	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}

	if !record.StartedAt.IsZero() {
		fields["started_at"] = record.StartedAt.UTC().Format(time.RFC3339Nano)
	}

	if !record.FinishedAt.IsZero() {
		fields["finished_at"] = record.FinishedAt.UTC().Format(time.RFC3339Nano)
	}

	return structpb.NewStruct(fields)
}
