package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/san-kum/cartpole/internal/cartpole"
	"github.com/san-kum/cartpole/internal/episode"
)

const (
	metadataFile = "metadata.json"
	episodesFile = "episodes.csv"
	stepsFile    = "steps.csv"
)

var (
	episodesHeader = []string{"episode", "steps", "return", "terminated"}
	stepsHeader    = []string{"episode", "step", "action", "x", "x_dot", "theta", "theta_dot", "reward", "done"}
)

// FileStore keeps one directory per run under baseDir.
type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (s *FileStore) Init(ctx context.Context) error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) Save(ctx context.Context, meta RunMetadata, result *episode.Result) (string, error) {
	prepare(&meta, result)
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	rows := make([][]string, 0, len(result.Episodes)+1)
	rows = append(rows, episodesHeader)
	for _, ep := range result.Episodes {
		rows = append(rows, []string{
			strconv.Itoa(ep.Index),
			strconv.Itoa(ep.Steps),
			strconv.FormatFloat(ep.Return, 'f', -1, 64),
			strconv.FormatBool(ep.Terminated),
		})
	}
	if err := writeCSV(filepath.Join(runDir, episodesFile), rows); err != nil {
		return "", err
	}

	if len(result.Steps) == 0 {
		return meta.ID, nil
	}

	rows = make([][]string, 0, len(result.Steps)+1)
	rows = append(rows, stepsHeader)
	for _, rec := range result.Steps {
		st := rec.State
		rows = append(rows, []string{
			strconv.Itoa(rec.Episode),
			strconv.Itoa(rec.Step),
			strconv.Itoa(int(rec.Action)),
			strconv.FormatFloat(st.X, 'g', -1, 64),
			strconv.FormatFloat(st.XDot, 'g', -1, 64),
			strconv.FormatFloat(st.Theta, 'g', -1, 64),
			strconv.FormatFloat(st.ThetaDot, 'g', -1, 64),
			strconv.Itoa(st.Reward),
			strconv.FormatBool(st.Done),
		})
	}
	if err := writeCSV(filepath.Join(runDir, stepsFile), rows); err != nil {
		return "", err
	}

	return meta.ID, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil
	}
	return records[1:], nil
}

func (s *FileStore) List(ctx context.Context) ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(ctx, entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *FileStore) Load(ctx context.Context, runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *FileStore) LoadEpisodes(ctx context.Context, runID string) ([]episode.Summary, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, episodesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	episodes := make([]episode.Summary, 0, len(records))
	for i, record := range records {
		ep, err := parseEpisode(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", episodesFile, i+2, err)
		}
		episodes = append(episodes, ep)
	}

	return episodes, nil
}

func (s *FileStore) LoadSteps(ctx context.Context, runID string) ([]episode.StepRecord, error) {
	if _, err := s.Load(ctx, runID); err != nil {
		return nil, err
	}

	records, err := readCSV(filepath.Join(s.baseDir, runID, stepsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []episode.StepRecord{}, nil
		}
		return nil, err
	}

	steps := make([]episode.StepRecord, 0, len(records))
	for i, record := range records {
		rec, err := parseStep(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", stepsFile, i+2, err)
		}
		steps = append(steps, rec)
	}
	return steps, nil
}

func parseEpisode(record []string) (episode.Summary, error) {
	var ep episode.Summary
	if len(record) != len(episodesHeader) {
		return ep, fmt.Errorf("expected %d fields, got %d", len(episodesHeader), len(record))
	}

	var err error
	if ep.Index, err = strconv.Atoi(record[0]); err != nil {
		return ep, err
	}
	if ep.Steps, err = strconv.Atoi(record[1]); err != nil {
		return ep, err
	}
	if ep.Return, err = strconv.ParseFloat(record[2], 64); err != nil {
		return ep, err
	}
	if ep.Terminated, err = strconv.ParseBool(record[3]); err != nil {
		return ep, err
	}
	return ep, nil
}

func parseStep(record []string) (episode.StepRecord, error) {
	var rec episode.StepRecord
	if len(record) != len(stepsHeader) {
		return rec, fmt.Errorf("expected %d fields, got %d", len(stepsHeader), len(record))
	}

	ints := make([]int, 4)
	for i, idx := range []int{0, 1, 2, 7} {
		v, err := strconv.Atoi(record[idx])
		if err != nil {
			return rec, err
		}
		ints[i] = v
	}
	floats := make([]float64, 4)
	for i := range floats {
		v, err := strconv.ParseFloat(record[3+i], 64)
		if err != nil {
			return rec, err
		}
		floats[i] = v
	}
	done, err := strconv.ParseBool(record[8])
	if err != nil {
		return rec, err
	}

	rec.Episode = ints[0]
	rec.Step = ints[1]
	rec.Action = cartpole.Action(ints[2])
	rec.State = cartpole.EpisodeState{
		X:        floats[0],
		XDot:     floats[1],
		Theta:    floats[2],
		ThetaDot: floats[3],
		Reward:   ints[3],
		Done:     done,
	}
	return rec, nil
}
