package world

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"ratpet.ai/internal/sim/world/kernel/model"
)

type digestToy struct {
	Pos       [2]float64
	Vel       [2]float64
	Spin      float64
	Active    bool
	Visible   bool
	Carried   bool
	Following bool
}

type digestState struct {
	Agent  model.Agent
	Toy    digestToy
	Bubble model.Bubble
	Reveal model.Reveal
	Prints int
	Tasks  int
}

// stateDigest hashes the simulation state that replay must reproduce.
func (w *World) stateDigest() string {
	t := w.toy
	b, err := json.Marshal(digestState{
		Agent: w.agent,
		Toy: digestToy{
			Pos:       [2]float64{t.Pos.X, t.Pos.Y},
			Vel:       [2]float64{t.Vel.X, t.Vel.Y},
			Spin:      t.Spin,
			Active:    t.Active,
			Visible:   t.Visible,
			Carried:   t.Carried,
			Following: t.Following,
		},
		Bubble: w.bubble,
		Reveal: w.reveal,
		Prints: len(w.trail.Prints),
		Tasks:  w.tasks.Len(),
	})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
