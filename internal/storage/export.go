package storage

import (
	"context"
	"encoding/json"
	"io"

	"github.com/san-kum/cartpole/internal/episode"
)

type ExportData struct {
	Run      RunMetadata          `json:"run"`
	Episodes []episode.Summary    `json:"episodes"`
	Steps    []episode.StepRecord `json:"steps,omitempty"`
}

// ExportJSON writes a stored run, its episodes and any recorded steps as
// one indented JSON document.
func ExportJSON(ctx context.Context, st Store, runID string, w io.Writer) error {
	meta, err := st.Load(ctx, runID)
	if err != nil {
		return err
	}
	episodes, err := st.LoadEpisodes(ctx, runID)
	if err != nil {
		return err
	}
	steps, err := st.LoadSteps(ctx, runID)
	if err != nil {
		return err
	}

	data := ExportData{
		Run:      *meta,
		Episodes: episodes,
		Steps:    steps,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
