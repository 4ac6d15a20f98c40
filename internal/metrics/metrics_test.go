package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/cartpole/internal/cartpole"
)

func TestEpisodeLength(t *testing.T) {
	m := NewEpisodeLength()
	if m.Value() != 0 {
		t.Errorf("expected 0 before any episode, got %f", m.Value())
	}

	for _, steps := range []int{10, 20, 30} {
		m.EndEpisode(steps)
	}
	if math.Abs(m.Value()-20) > 1e-12 {
		t.Errorf("expected mean 20, got %f", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero after reset")
	}
}

func TestMovingAverageWindow(t *testing.T) {
	m := NewMovingAverage(3)

	for _, steps := range []int{100, 1, 2, 3} {
		m.EndEpisode(steps)
	}
	if !m.Full() {
		t.Error("window should be full")
	}
	if math.Abs(m.Value()-2) > 1e-12 {
		t.Errorf("expected mean of last 3 episodes (2), got %f", m.Value())
	}
}

func TestStability(t *testing.T) {
	m := NewStability(0.1)
	if m.Value() != 1.0 {
		t.Errorf("expected 1.0 with no samples, got %f", m.Value())
	}

	m.Observe(cartpole.EpisodeState{Theta: 0.05}, cartpole.PushLeft)
	m.Observe(cartpole.EpisodeState{Theta: -0.2}, cartpole.PushLeft)
	if math.Abs(m.Value()-0.5) > 1e-12 {
		t.Errorf("expected 0.5, got %f", m.Value())
	}
}

func TestActionBalance(t *testing.T) {
	m := NewActionBalance()
	m.Observe(cartpole.EpisodeState{}, cartpole.PushRight)
	m.Observe(cartpole.EpisodeState{}, cartpole.PushRight)
	m.Observe(cartpole.EpisodeState{}, cartpole.PushRight)
	m.Observe(cartpole.EpisodeState{}, cartpole.PushLeft)

	if math.Abs(m.Value()-0.5) > 1e-12 {
		t.Errorf("expected 0.5, got %f", m.Value())
	}
}

func TestEnergy(t *testing.T) {
	m := NewEnergy(1.0, 1.0, 9.8)

	if e := m.At(cartpole.EpisodeState{}); e != 0 {
		t.Errorf("upright at rest should have zero energy, got %f", e)
	}

	theta := math.Pi / 4
	s := cartpole.EpisodeState{Theta: theta, ThetaDot: 2}
	expected := 0.5*4 + 9.8*(math.Cos(theta)-1)

	m.Observe(s, cartpole.PushLeft)
	if math.Abs(m.Value()-expected) > 1e-9 {
		t.Errorf("expected energy %f, got %f", expected, m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero energy after reset")
	}
}

func TestDefaultsHaveUniqueNames(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Defaults() {
		if seen[m.Name()] {
			t.Errorf("duplicate metric name %q", m.Name())
		}
		seen[m.Name()] = true
	}
}
