package checkpoint

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-social-bot/types"
	"github.com/saiset-co/sai-social-bot/utils"
)

const (
	checkpointsFile = "checkpoints.json"
	cursorFile      = "cursor.json"
)

type cursorRecord struct {
	Index int `json:"index"`
}

// Store persists the per-account last-seen post ids and the round-robin
// cursor as flat JSON files. Missing files are the cold-start condition:
// an empty map and index 0. Writes replace the whole file.
type Store struct {
	logger types.Logger
	dir    string
	mu     sync.Mutex
}

func NewStore(logger types.Logger, config *types.CheckpointConfig) (*Store, error) {
	if config == nil {
		return nil, types.ErrConfigIsNil
	}

	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return nil, types.Errorf(types.ErrCheckpointLoadFailed, "create state dir %s: %v", config.Dir, err)
	}

	return &Store{
		logger: logger,
		dir:    config.Dir,
	}, nil
}

func (s *Store) LoadCheckpoints() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkpoints := make(map[string]string)

	data, err := os.ReadFile(filepath.Join(s.dir, checkpointsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return checkpoints, nil
		}
		return nil, types.Errorf(types.ErrCheckpointLoadFailed, "read checkpoints: %v", err)
	}

	if err := utils.Unmarshal(data, &checkpoints); err != nil {
		return nil, types.Errorf(types.ErrCheckpointLoadFailed, "parse checkpoints: %v", err)
	}

	return checkpoints, nil
}

func (s *Store) SaveCheckpoints(checkpoints map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := utils.Marshal(checkpoints)
	if err != nil {
		return types.Errorf(types.ErrCheckpointSaveFailed, "marshal checkpoints: %v", err)
	}

	if err := s.writeFile(checkpointsFile, data); err != nil {
		return types.Errorf(types.ErrCheckpointSaveFailed, "write checkpoints: %v", err)
	}

	s.logger.Debug("Checkpoints saved", zap.Int("accounts", len(checkpoints)))
	return nil
}

func (s *Store) LoadCursor() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, cursorFile))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, types.Errorf(types.ErrCheckpointLoadFailed, "read cursor: %v", err)
	}

	var record cursorRecord
	if err := utils.Unmarshal(data, &record); err != nil {
		return 0, types.Errorf(types.ErrCheckpointLoadFailed, "parse cursor: %v", err)
	}

	if record.Index < 0 {
		return 0, nil
	}

	return record.Index, nil
}

func (s *Store) SaveCursor(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := utils.Marshal(cursorRecord{Index: index})
	if err != nil {
		return types.Errorf(types.ErrCheckpointSaveFailed, "marshal cursor: %v", err)
	}

	if err := s.writeFile(cursorFile, data); err != nil {
		return types.Errorf(types.ErrCheckpointSaveFailed, "write cursor: %v", err)
	}

	return nil
}

// writeFile goes through a temp file so a crash mid-write never leaves a
// truncated checkpoint behind.
func (s *Store) writeFile(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

var _ types.CheckpointStore = (*Store)(nil)
