package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"git.fiblab.net/sim/streetcover/planner"
)

var log = logrus.WithField("module", "store")

var (
	// 错误：数据集中不存在该街道
	ErrStreetNotFound = errors.New("street not found")
)

// 街道数据集的持久化后端
type Store interface {
	LoadSegments(ctx context.Context) ([]*planner.StreetSegment, error)
	SaveSegments(ctx context.Context, segs []*planner.StreetSegment) error
	SetCompleted(ctx context.Context, streetID string, completed bool) error
	Close(ctx context.Context) error
}

// JSON快照文件后端
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) LoadSegments(ctx context.Context) ([]*planner.StreetSegment, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*planner.StreetSegment{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	segs := make([]*planner.StreetSegment, 0)
	if err := json.Unmarshal(data, &segs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return segs, nil
}

func (s *FileStore) SaveSegments(ctx context.Context, segs []*planner.StreetSegment) error {
	data, err := json.Marshal(segs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	log.Infof("saved %d segments to %s", len(segs), s.path)
	return nil
}

func (s *FileStore) SetCompleted(ctx context.Context, streetID string, completed bool) error {
	segs, err := s.LoadSegments(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, seg := range segs {
		if seg.ID == streetID {
			seg.Completed = completed
			found = true
			break
		}
	}
	if !found {
		return ErrStreetNotFound
	}
	return s.SaveSegments(ctx, segs)
}

func (s *FileStore) Close(ctx context.Context) error { return nil }
