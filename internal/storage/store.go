// Package storage persists offline simulation runs: one directory per
// run holding metadata and the full trajectory.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/pendctl/internal/sim"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID            string             `json:"id"`
	Timestamp     time.Time          `json:"timestamp"`
	FeedbackGains []float64          `json:"feedback_gains"`
	Dt            float64            `json:"dt"`
	Duration      float64            `json:"duration"`
	Integrator    string             `json:"integrator"`
	Metrics       map[string]float64 `json:"metrics"`
}

// Save writes a run to <baseDir>/<id>/ as metadata.json plus states.csv
// with columns time, cart position/velocity, pole angle/velocity, force.
func (s *Store) Save(gains []float64, dt, duration float64, integrator string, result *sim.Result) (string, error) {
	runID := fmt.Sprintf("cartpole_%d", time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:            runID,
		Timestamp:     time.Now(),
		FeedbackGains: gains,
		Dt:            dt,
		Duration:      duration,
		Integrator:    integrator,
		Metrics:       result.Metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	header := []string{"time", "cart_position", "cart_velocity", "pole_angle", "pole_velocity", "force"}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for i := range result.States {
		row := make([]string, 0, len(header))
		row = append(row, strconv.FormatFloat(result.Times[i], 'f', 6, 64))
		for _, v := range result.States[i] {
			row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
		}
		if i < len(result.Commands) && len(result.Commands[i]) > 0 {
			row = append(row, strconv.FormatFloat(result.Commands[i][0], 'f', 6, 64))
		} else {
			row = append(row, "0")
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var runs []RunMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.loadMetadata(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}

// LoadStates reads the trajectory of a saved run back as states, command
// values, and times.
func (s *Store) LoadStates(runID string) ([]sim.State, []float64, []float64, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(rows) < 2 {
		return nil, nil, nil, fmt.Errorf("storage: run %s has no samples", runID)
	}

	var (
		states []sim.State
		forces []float64
		times  []float64
	)
	for _, row := range rows[1:] {
		if len(row) != 6 {
			return nil, nil, nil, fmt.Errorf("storage: run %s has malformed row", runID)
		}
		vals := make([]float64, 6)
		for i, cell := range row {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, nil, err
			}
			vals[i] = v
		}
		times = append(times, vals[0])
		states = append(states, sim.State{vals[1], vals[2], vals[3], vals[4]})
		forces = append(forces, vals[5])
	}
	return states, forces, times, nil
}

func (s *Store) loadMetadata(runID string) (RunMetadata, error) {
	var meta RunMetadata
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}
