package engine

import "sync"

// Flags is the shared control state: whether the loop trades and whether
// entries are simulated. The command channel mutates it from its own
// goroutine, so access goes through a lock.
type Flags struct {
	mu         sync.Mutex
	running    bool
	simulation bool
}

func NewFlags(running, simulation bool) *Flags {
	return &Flags{running: running, simulation: simulation}
}

func (f *Flags) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *Flags) SetRunning(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = v
}

func (f *Flags) Simulation() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.simulation
}

// ToggleSimulation flips the simulation flag and returns the new value.
func (f *Flags) ToggleSimulation() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.simulation = !f.simulation
	return f.simulation
}
