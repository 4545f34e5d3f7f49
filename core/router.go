package core

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/encodeous/dvnet/perf"
	"github.com/encodeous/dvnet/state"
	"github.com/jellydator/ttlcache/v3"
)

type RouterEvent int

// trace events

const (
	RouteChanged RouterEvent = iota
	NeighbourDown
	NeighbourUp
	TriggeredUpdate
)

// warn events

const (
	UnknownNeighbour RouterEvent = iota + 1000
	StaleAdvert
	BadAdvert
)

func (e RouterEvent) String() string {
	switch e {
	case RouteChanged:
		return "RouteChanged"
	case NeighbourDown:
		return "NeighbourDown"
	case NeighbourUp:
		return "NeighbourUp"
	case TriggeredUpdate:
		return "TriggeredUpdate"
	case UnknownNeighbour:
		return "UnknownNeighbour"
	case StaleAdvert:
		return "StaleAdvert"
	case BadAdvert:
		return "BadAdvert"
	}
	return fmt.Sprintf("RouterEvent(%d)", int(e))
}

// DvRouter advertises the local distance vector to every neighbour, periodically and
// whenever it changes, and feeds received vectors into the table.
type DvRouter struct {
	*state.State
	Table     *state.DVTable
	Transport Transport
	Forward   *ForwardTable
	Policy    ExportPolicy
	// Liveness holds the last seqno heard from each neighbour. A neighbour whose entry
	// expires is considered down.
	Liveness *ttlcache.Cache[state.NodeId, uint64]
	// links are the configured link costs, restored when a neighbour comes back up
	links   map[state.NodeId]state.Cost
	down    map[state.NodeId]bool
	seqno   uint64
	pending bool
}

func (r *DvRouter) Init(s *state.State) error {
	s.Log.Debug("init router")
	r.State = s

	tbl, err := state.NewDVTable(s.Topology())
	if err != nil {
		return err
	}
	r.Table = tbl
	r.Forward = NewForwardTable(s.LocalCfg.Id, &s.CentralCfg)
	r.Forward.Update(r.nextHops())
	r.Policy = ExportPlain
	if s.LocalCfg.PoisonReverse {
		r.Policy = ExportPoisonReverse
	}
	r.links = make(map[state.NodeId]state.Cost)
	r.down = make(map[state.NodeId]bool)
	r.seqno = uint64(time.Now().UnixNano())
	r.Liveness = ttlcache.New[state.NodeId, uint64](
		ttlcache.WithTTL[state.NodeId, uint64](state.NeighbourDeadThreshold),
		ttlcache.WithDisableTouchOnHit[state.NodeId, uint64](),
	)
	for _, neigh := range tbl.Neighbours() {
		cost, _ := tbl.LinkCost(neigh)
		r.links[neigh] = cost
		// neighbours get one dead interval to say hello
		r.Liveness.Set(neigh, 0, ttlcache.DefaultTTL)
	}

	err = r.initTransport(s)
	if err != nil {
		return err
	}

	s.Log.Debug("schedule router tasks")
	s.Env.RepeatTask(func(s *state.State) error {
		return r.broadcast()
	}, state.AdvertiseDelay)
	s.Env.RepeatTask(r.gc, state.GcDelay)
	return nil
}

func (r *DvRouter) initTransport(s *state.State) error {
	handler := func(pkt []byte) {
		adv, err := UnmarshalAdvert(pkt, s.CentralCfg.Key)
		if err != nil {
			perf.DroppedAdverts.Add(1)
			s.Env.Dispatch(func(s *state.State) error {
				r.Log(BadAdvert, "dropped advertisement", "error", err)
				return nil
			})
			return
		}
		perf.RecvAdvertsPerSec.Add(1)
		s.Env.Dispatch(func(s *state.State) error {
			return r.HandleAdvert(adv)
		})
	}

	if vn, ok := s.AuxConfig["vnet"].(*VirtualNetwork); ok {
		r.Transport = vn.Attach(s.LocalCfg.Id, handler)
		return nil
	}

	peers := make(map[state.NodeId]netip.AddrPort)
	for _, neigh := range r.Table.Neighbours() {
		peers[neigh] = s.GetNode(neigh).Endpoint
	}
	port := state.DefaultPort
	if ep := s.GetNode(s.LocalCfg.Id).Endpoint; ep.IsValid() {
		port = ep.Port()
	}
	if s.LocalCfg.Port != 0 {
		port = s.LocalCfg.Port
	}
	bind := netip.AddrPortFrom(netip.IPv4Unspecified(), port)
	t, err := ListenUdp(s.Context, bind, peers, handler, s.Log)
	if err != nil {
		return err
	}
	s.Log.Info("listening for advertisements", "addr", t.LocalAddr())
	r.Transport = t
	return nil
}

func (r *DvRouter) Log(event RouterEvent, desc string, args ...any) {
	if t, ok := Find[*RouteTrace](r.State); ok {
		t.Submit(TraceEvent{Event: event, Desc: traceDesc(desc, args)})
	}
	if event >= UnknownNeighbour {
		r.Env.Log.Warn(fmt.Sprintf("%s %s", event.String(), desc), args...)
		return
	}
	if state.DBG_log_router {
		r.Env.Log.Debug(fmt.Sprintf("%s %s", event.String(), desc), args...)
	}
}

func traceDesc(desc string, args []any) string {
	sb := strings.Builder{}
	sb.WriteString(desc)
	for i := 0; i+1 < len(args); i += 2 {
		sb.WriteString(fmt.Sprintf(" %v=%v", args[i], args[i+1]))
	}
	return sb.String()
}

// HandleAdvert applies a vector received from a neighbour. Must run on the dispatch goroutine.
func (r *DvRouter) HandleAdvert(adv Advert) error {
	src := adv.Source
	if src == r.LocalCfg.Id {
		return nil
	}
	if _, ok := r.links[src]; !ok {
		r.Log(UnknownNeighbour, "advertisement from a node that is not a neighbour", "node", src)
		return nil
	}
	if prev := r.Liveness.Get(src); prev != nil && adv.Seqno <= prev.Value() {
		perf.DroppedAdverts.Add(1)
		r.Log(StaleAdvert, "stale advertisement", "node", src, "seqno", adv.Seqno, "last", prev.Value())
		return nil
	}
	r.Liveness.Set(src, adv.Seqno, ttlcache.DefaultTTL)

	changed := false
	if r.down[src] {
		delete(r.down, src)
		r.Log(NeighbourUp, "neighbour is back", "node", src, "cost", r.links[src])
		c, err := UpdateLinkCost(r.Table, src, r.links[src])
		if err != nil {
			return r.tableError(err)
		}
		changed = c
	}

	c, err := ApplyNeighbourVector(r.Table, adv.DistanceVector)
	if err != nil {
		return r.tableError(err)
	}
	perf.Recomputes.Add(1)
	if changed || c {
		r.onChange()
	}
	return nil
}

// SetLinkCost is called when probing finds that the cost of a link has changed.
func (r *DvRouter) SetLinkCost(neigh state.NodeId, cost state.Cost) error {
	if _, ok := r.links[neigh]; !ok {
		return fmt.Errorf("%w: %d is not a neighbour", state.ErrNotFound, neigh)
	}
	r.links[neigh] = state.ClampCost(cost)
	if r.down[neigh] {
		return nil // applied when the neighbour comes back
	}
	changed, err := UpdateLinkCost(r.Table, neigh, cost)
	if err != nil {
		return err
	}
	if changed {
		r.onChange()
	}
	return nil
}

func (r *DvRouter) neighbourDown(neigh state.NodeId) error {
	r.down[neigh] = true
	r.Log(NeighbourDown, "neighbour timed out", "node", neigh)
	c1, err := UpdateLinkCost(r.Table, neigh, state.INF)
	if err != nil {
		return r.tableError(err)
	}
	c2, err := ResetNeighbour(r.Table, neigh)
	if err != nil {
		return r.tableError(err)
	}
	if c1 || c2 {
		r.onChange()
	}
	return nil
}

// tableError keeps per-call table failures from taking the node down.
func (r *DvRouter) tableError(err error) error {
	if IsTableError(err) {
		r.Env.Log.Warn("table operation failed", "error", err)
		return nil
	}
	return err
}

func (r *DvRouter) nextHops() map[state.NodeId]state.NodeId {
	var hops map[state.NodeId]state.NodeId
	_ = r.Table.View(func(rows *state.Rows) {
		hops = NextHops(rows)
	})
	return hops
}

func (r *DvRouter) onChange() {
	for _, change := range r.Forward.Update(r.nextHops()) {
		r.Log(RouteChanged, change.String())
		if state.DBG_log_route_changes {
			r.Env.Log.Info("route changed", "change", change.String())
		}
	}
	if state.DBG_log_route_table {
		r.Env.Log.Info("table\n" + r.Table.Render())
	}

	// coalesce bursts of changes into a single triggered update
	if r.pending {
		return
	}
	r.pending = true
	r.Env.ScheduleTask(func(s *state.State) error {
		r.pending = false
		perf.TriggeredUpdates.Add(1)
		r.Log(TriggeredUpdate, "sending triggered update")
		return r.broadcast()
	}, state.TriggeredUpdateDelay)
}

func (r *DvRouter) broadcast() error {
	if r.Table == nil {
		return nil
	}
	for _, neigh := range r.Table.Neighbours() {
		vec, err := ExportVector(r.Table, neigh, r.Policy)
		if err != nil {
			return r.tableError(err)
		}
		r.seqno++
		pkt, err := MarshalAdvert(Advert{DistanceVector: vec, Seqno: r.seqno}, r.CentralCfg.Key)
		if err != nil {
			return err
		}
		err = r.Transport.Send(neigh, pkt)
		if err != nil {
			r.Env.Log.Debug("failed to send advertisement", "to", neigh, "error", err)
			continue
		}
		perf.AdvertsPerSecond.Add(1)
	}
	return nil
}

func (r *DvRouter) gc(s *state.State) error {
	r.Liveness.DeleteExpired()
	for neigh := range r.links {
		if !r.down[neigh] && !r.Liveness.Has(neigh) {
			if err := r.neighbourDown(neigh); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *DvRouter) Cleanup(s *state.State) error {
	var err error
	if r.Transport != nil {
		err = r.Transport.Close()
	}
	if r.Liveness != nil {
		r.Liveness.DeleteAll()
	}
	if r.Table != nil {
		r.Table.Destroy()
	}
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}
