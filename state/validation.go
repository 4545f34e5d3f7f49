package state

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/multierr"
)

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func NodeConfigValidator(node *LocalCfg, central *CentralCfg) error {
	if !central.IsNode(node.Id) {
		return fmt.Errorf("node %d is not defined in the central config", node.Id)
	}
	if node.LogPath != "" {
		if err := PathValidator(node.LogPath); err != nil {
			return fmt.Errorf("invalid log_path: %w", err)
		}
	}
	for _, n := range central.Nodes {
		if n.Id == node.Id || n.Endpoint.IsValid() {
			continue
		}
		for _, l := range central.Links {
			if (l.A == node.Id && l.B == n.Id) || (l.B == node.Id && l.A == n.Id) {
				return fmt.Errorf("neighbour %d has no endpoint", n.Id)
			}
		}
	}
	return nil
}

// CentralConfigValidator reports every problem it finds, not just the first one.
func CentralConfigValidator(cfg *CentralCfg) error {
	var errs error
	if len(cfg.Nodes) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("no nodes defined"))
	}
	seen := make(map[NodeId]struct{})
	for _, node := range cfg.Nodes {
		if _, ok := seen[node.Id]; ok {
			errs = multierr.Append(errs, fmt.Errorf("duplicate node: %d", node.Id))
		}
		seen[node.Id] = struct{}{}
		for _, p := range node.Prefixes {
			if !p.IsValid() {
				errs = multierr.Append(errs, fmt.Errorf("node %d has an invalid prefix", node.Id))
			}
		}
	}
	edges := make(map[Pair[NodeId, NodeId]]struct{})
	for _, link := range cfg.Links {
		if link.A == link.B {
			errs = multierr.Append(errs, fmt.Errorf("link from %d to itself", link.A))
			continue
		}
		for _, n := range []NodeId{link.A, link.B} {
			if _, ok := seen[n]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("node %d not defined", n))
			}
		}
		if link.Cost >= INF {
			errs = multierr.Append(errs, fmt.Errorf("link %d, %d has cost %d, must be below %d", link.A, link.B, link.Cost, INF))
		}
		edge := MakeSortedPair(link.A, link.B)
		if _, ok := edges[edge]; ok {
			errs = multierr.Append(errs, fmt.Errorf("duplicate link found: %d, %d", edge.V1, edge.V2))
		}
		edges[edge] = struct{}{}
	}
	return errs
}
