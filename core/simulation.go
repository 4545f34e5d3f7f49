package core

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/encodeous/dvnet/state"
	"go.uber.org/multierr"
)

// Simulation runs every node of a network inside this process, connected by a VirtualNetwork.
type Simulation struct {
	Central       state.CentralCfg
	Net           *VirtualNetwork
	PoisonReverse bool
	LogLevel      slog.Level

	mu     sync.Mutex
	states map[state.NodeId]*state.State
	errs   []error
	wg     sync.WaitGroup
}

func NewSimulation(ccfg state.CentralCfg) *Simulation {
	return &Simulation{
		Central:  ccfg,
		Net:      NewVirtualNetwork(),
		LogLevel: slog.LevelWarn,
		states:   make(map[state.NodeId]*state.State),
	}
}

// Start launches every node and waits until all of them have initialized.
func (v *Simulation) Start() error {
	err := state.CentralConfigValidator(&v.Central)
	if err != nil {
		return err
	}
	ready := make(chan state.NodeId, len(v.Central.Nodes))
	failed := make(chan error, len(v.Central.Nodes))
	for _, node := range v.Central.Nodes {
		lcfg := state.LocalCfg{
			Id:            node.Id,
			PoisonReverse: v.PoisonReverse,
		}
		aux := map[string]any{
			"vnet": v.Net,
			"ready": func(s *state.State) {
				v.mu.Lock()
				v.states[s.LocalCfg.Id] = s
				v.mu.Unlock()
				ready <- s.LocalCfg.Id
			},
		}
		v.wg.Add(1)
		go func() {
			defer v.wg.Done()
			labels := pprof.Labels("dvnet node", node.Id.String())
			pprof.Do(context.Background(), labels, func(_ context.Context) {
				cErr := Start(v.Central, lcfg, v.LogLevel, aux, nil)
				if cErr != nil {
					v.mu.Lock()
					v.errs = append(v.errs, fmt.Errorf("node %d: %w", node.Id, cErr))
					v.mu.Unlock()
					failed <- cErr
				}
			})
		}()
	}
	var errs error
	for range v.Central.Nodes {
		select {
		case <-ready:
		case err := <-failed:
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		_ = v.Stop()
		return errs
	}
	return nil
}

// Node returns the state of a running node, or nil.
func (v *Simulation) Node(id state.NodeId) *state.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.states[id]
}

// Query runs fn on the node's dispatch goroutine.
func (v *Simulation) Query(id state.NodeId, fn func(r *DvRouter) any) (any, error) {
	s := v.Node(id)
	if s == nil {
		return nil, fmt.Errorf("node %d is not running", id)
	}
	return s.DispatchWait(func(s *state.State) (any, error) {
		return fn(Get[*DvRouter](s)), nil
	})
}

// Costs returns the node's current distance to every destination.
func (v *Simulation) Costs(id state.NodeId) (map[state.NodeId]state.Cost, error) {
	res, err := v.Query(id, func(r *DvRouter) any {
		out := make(map[state.NodeId]state.Cost)
		for _, e := range r.Table.LocalVector().Entries {
			out[e.Dest] = e.Cost
		}
		return out
	})
	if err != nil {
		return nil, err
	}
	return res.(map[state.NodeId]state.Cost), nil
}

// Await polls cond until it holds or the timeout elapses.
func (v *Simulation) Await(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

// Stop cancels every node, waits for them to exit and returns the errors they reported.
func (v *Simulation) Stop() error {
	v.mu.Lock()
	for _, s := range v.states {
		s.Cancel(context.Canceled)
	}
	v.mu.Unlock()
	v.wg.Wait()
	v.Net.Wait()

	v.mu.Lock()
	defer v.mu.Unlock()
	return multierr.Combine(v.errs...)
}
