package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/cartpole/internal/cartpole"
	"github.com/san-kum/cartpole/internal/episode"
)

func sampleResult() *episode.Result {
	return &episode.Result{
		Episodes: []episode.Summary{
			{Index: 0, Steps: 1, Return: 0, Terminated: true},
			{Index: 1, Steps: 500, Return: 500, Terminated: false},
		},
		Steps: []episode.StepRecord{
			{Episode: 0, Step: 0, Action: cartpole.PushRight, State: cartpole.EpisodeState{
				X: 1.02, XDot: 1.18009196108392, Theta: 1.02, ThetaDot: 1.1014363167705858, Done: true,
			}},
		},
		Metrics:    map[string]float64{"episode_length": 250.5},
		TotalSteps: 501,
		SolvedAt:   -1,
	}
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	stores := map[string]Store{
		"file":   NewFileStore(filepath.Join(dir, "runs")),
		"sqlite": NewSQLiteStore(filepath.Join(dir, "runs.db")),
	}
	for name, st := range stores {
		if err := st.Init(context.Background()); err != nil {
			t.Fatalf("%s: init failed: %v", name, err)
		}
		t.Cleanup(func() { st.Close() })
	}
	return stores
}

func TestStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			runID, err := st.Save(ctx, RunMetadata{
				Controller: "lqr",
				Seed:       42,
				MaxSteps:   500,
				InitState:  []float64{0, 0, 0.1, 0},
			}, sampleResult())
			if err != nil {
				t.Fatalf("save failed: %v", err)
			}
			if !strings.HasPrefix(runID, "lqr_") || len(runID) != len("lqr_")+8 {
				t.Errorf("unexpected run id %q", runID)
			}

			meta, err := st.Load(ctx, runID)
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if meta.ID != runID || meta.Controller != "lqr" || meta.Seed != 42 {
				t.Errorf("unexpected metadata: %+v", meta)
			}
			if meta.Episodes != 2 || meta.TotalSteps != 501 || meta.SolvedAt != -1 {
				t.Errorf("result fields not stored: %+v", meta)
			}
			if meta.Metrics["episode_length"] != 250.5 {
				t.Errorf("expected episode_length 250.5, got %f", meta.Metrics["episode_length"])
			}
			if len(meta.InitState) != 4 || meta.InitState[2] != 0.1 {
				t.Errorf("init state not stored: %v", meta.InitState)
			}
			if meta.Timestamp.IsZero() {
				t.Error("timestamp not set")
			}

			episodes, err := st.LoadEpisodes(ctx, runID)
			if err != nil {
				t.Fatalf("load episodes failed: %v", err)
			}
			if len(episodes) != 2 || episodes[1].Steps != 500 || episodes[1].Terminated {
				t.Errorf("unexpected episodes: %+v", episodes)
			}

			steps, err := st.LoadSteps(ctx, runID)
			if err != nil {
				t.Fatalf("load steps failed: %v", err)
			}
			if len(steps) != 1 {
				t.Fatalf("expected 1 step, got %d", len(steps))
			}
			if steps[0] != sampleResult().Steps[0] {
				t.Errorf("step not preserved exactly: %+v", steps[0])
			}
		})
	}
}

func TestStoreWithoutSteps(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			result := sampleResult()
			result.Steps = nil

			runID, err := st.Save(ctx, RunMetadata{Controller: "pid"}, result)
			if err != nil {
				t.Fatalf("save failed: %v", err)
			}
			steps, err := st.LoadSteps(ctx, runID)
			if err != nil {
				t.Fatalf("load steps failed: %v", err)
			}
			if len(steps) != 0 {
				t.Errorf("expected no steps, got %d", len(steps))
			}
		})
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			runs, err := st.List(ctx)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(runs) != 0 {
				t.Errorf("expected 0 runs, got %d", len(runs))
			}

			for _, c := range []string{"random", "lqr"} {
				if _, err := st.Save(ctx, RunMetadata{Controller: c}, sampleResult()); err != nil {
					t.Fatalf("save failed: %v", err)
				}
			}

			runs, err = st.List(ctx)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(runs) != 2 {
				t.Fatalf("expected 2 runs, got %d", len(runs))
			}
			if runs[0].Controller != "random" || runs[1].Controller != "lqr" {
				t.Errorf("expected oldest first, got %s, %s", runs[0].Controller, runs[1].Controller)
			}
		})
	}
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := st.Load(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
				t.Errorf("load: expected ErrRunNotFound, got %v", err)
			}
			if _, err := st.LoadEpisodes(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
				t.Errorf("episodes: expected ErrRunNotFound, got %v", err)
			}
			if _, err := st.LoadSteps(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
				t.Errorf("steps: expected ErrRunNotFound, got %v", err)
			}
		})
	}
}

func TestFileStoreStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := NewFileStore(tmpDir)
	ctx := context.Background()

	if err := st.Init(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(ctx, RunMetadata{Controller: "constant"}, sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, runID)
	for _, name := range []string{metadataFile, episodesFile, stepsFile} {
		if _, err := os.Stat(filepath.Join(runDir, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}

	data, err := os.ReadFile(filepath.Join(runDir, episodesFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "episode,steps,return,terminated\n") {
		t.Errorf("unexpected episodes header: %q", data)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	st := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if _, err := st.List(context.Background()); err == nil {
		t.Error("expected error before init")
	}
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	st, err := NewStore("", dir)
	if err != nil {
		t.Fatalf("default store: %v", err)
	}
	if _, ok := st.(*FileStore); !ok {
		t.Errorf("expected file store, got %T", st)
	}

	st, err = NewStore("sqlite", dir)
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	sq, ok := st.(*SQLiteStore)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", st)
	}
	if sq.path != filepath.Join(dir, SQLiteFile) {
		t.Errorf("unexpected sqlite path %s", sq.path)
	}

	if _, err := NewStore("unknown", dir); err == nil {
		t.Error("expected unsupported store error")
	}
}

func TestExportJSON(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			runID, err := st.Save(ctx, RunMetadata{Controller: "lqr"}, sampleResult())
			if err != nil {
				t.Fatal(err)
			}

			var buf bytes.Buffer
			if err := ExportJSON(ctx, st, runID, &buf); err != nil {
				t.Fatalf("export failed: %v", err)
			}

			var data ExportData
			if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
				t.Fatalf("export is not valid JSON: %v", err)
			}
			if data.Run.ID != runID || len(data.Episodes) != 2 || len(data.Steps) != 1 {
				t.Errorf("unexpected export: %+v", data)
			}
			if !strings.Contains(buf.String(), `"theta_dot": 1.1014363167705858`) {
				t.Error("export should use the wire field names")
			}

			if err := ExportJSON(ctx, st, "missing", &buf); !errors.Is(err, ErrRunNotFound) {
				t.Errorf("expected ErrRunNotFound, got %v", err)
			}
		})
	}
}
