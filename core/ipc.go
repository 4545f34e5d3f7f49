package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/encodeous/dvnet/state"
)

// IpcServer answers local control requests on a unix socket. Each request is a single
// line, the reply is terminated by a NUL byte.
type IpcServer struct {
	listener net.Listener
	path     string
	wg       sync.WaitGroup
}

func SocketPath(cfg *state.LocalCfg) string {
	if cfg.SocketPath != "" {
		return cfg.SocketPath
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("dvnet-%d.sock", cfg.Id))
}

func (i *IpcServer) Init(s *state.State) error {
	if _, ok := s.AuxConfig["vnet"]; ok {
		// nodes in a simulated network are inspected through their State directly
		return nil
	}
	i.path = SocketPath(&s.LocalCfg)
	_ = os.Remove(i.path)
	l, err := net.Listen("unix", i.path)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", i.path, err)
	}
	i.listener = l
	s.Log.Debug("ipc listening", "path", i.path)
	i.wg.Add(1)
	go i.acceptLoop(s.Env)
	return nil
}

func (i *IpcServer) acceptLoop(e *state.Env) {
	defer i.wg.Done()
	for {
		conn, err := i.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			e.Log.Debug("ipc accept failed", "error", err)
			continue
		}
		i.wg.Add(1)
		go func() {
			defer i.wg.Done()
			defer conn.Close()
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
			if err := handleIpc(e, conn, rw); err != nil {
				e.Log.Debug("ipc request failed", "error", err)
			}
		}()
	}
}

func handleIpc(e *state.Env, conn net.Conn, rw *bufio.ReadWriter) error {
	line, err := rw.ReadString('\n')
	if err != nil {
		return err
	}
	if strings.TrimSpace(line) == "trace" {
		return streamTrace(e, conn, rw)
	}
	res, err := e.DispatchWait(func(s *state.State) (any, error) {
		return RunIpcCommand(s, line), nil
	})
	if err != nil {
		return err
	}
	_, err = rw.WriteString(res.(string))
	if err != nil {
		return err
	}
	err = rw.WriteByte(0)
	if err != nil {
		return err
	}
	return rw.Flush()
}

// streamTrace writes router events to the client, one per line, until the client goes away
// or the node stops.
func streamTrace(e *state.Env, conn net.Conn, rw *bufio.ReadWriter) error {
	ch := make(chan interface{}, 256)
	_, err := e.DispatchWait(func(s *state.State) (any, error) {
		Get[*RouteTrace](s).Register(ch)
		return nil, nil
	})
	if err != nil {
		return err
	}
	defer func() {
		// the broadcaster may be blocked on ch, keep draining until we are unregistered
		stop := make(chan struct{})
		go func() {
			for {
				select {
				case <-ch:
				case <-stop:
					return
				}
			}
		}()
		_, _ = e.DispatchWait(func(s *state.State) (any, error) {
			Get[*RouteTrace](s).Unregister(ch)
			return nil, nil
		})
		close(stop)
	}()

	for {
		select {
		case <-e.Context.Done():
			return nil
		case ev := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			_, err = fmt.Fprintln(rw, ev)
			if err != nil {
				return err
			}
			err = rw.Flush()
			if err != nil {
				return err
			}
		}
	}
}

// RunIpcCommand runs a command and renders its reply. Failures are reported to the client
// and never stop the node.
func RunIpcCommand(s *state.State, cmd string) string {
	out, err := HandleIpcCommand(s, strings.TrimSpace(cmd))
	if err != nil {
		return "error: " + err.Error() + "\n"
	}
	return out
}

// HandleIpcCommand runs a control command against the node. Must run on the dispatch goroutine.
func HandleIpcCommand(s *state.State, cmd string) (string, error) {
	args := strings.Fields(cmd)
	if len(args) == 0 {
		return "", errors.New("empty command")
	}
	r := Get[*DvRouter](s)
	switch args[0] {
	case "inspect":
		return Inspect(r), nil
	case "link":
		if len(args) != 3 {
			return "", errors.New("usage: link <neighbour> <cost>")
		}
		neigh, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return "", fmt.Errorf("bad neighbour: %w", err)
		}
		cost, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			return "", fmt.Errorf("bad cost: %w", err)
		}
		err = r.SetLinkCost(state.NodeId(neigh), state.ClampCost(state.Cost(cost)))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("link to %d is now %s\n", neigh, state.ClampCost(state.Cost(cost))), nil
	}
	return "", fmt.Errorf("unknown command %s", args[0])
}

// Inspect describes the router state in a human readable form.
func Inspect(r *DvRouter) string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("Node %d (%s)\n", r.LocalCfg.Id, r.Policy))

	sb.WriteString("\nNeighbours:\n")
	neighs := slices.Sorted(maps.Keys(r.links))
	if len(neighs) == 0 {
		sb.WriteString("    (none)\n")
	}
	for _, n := range neighs {
		status := "up"
		if r.down[n] {
			status = "down"
		}
		cost, _ := r.Table.LinkCost(n)
		sb.WriteString(fmt.Sprintf(" - %d: %s, link cost %s, configured %s\n", n, status, cost, r.links[n]))
	}

	sb.WriteString("\nDistance Table:\n")
	sb.WriteString(r.Table.Render())

	sb.WriteString("\nRoute Table:\n")
	sb.WriteString(r.Forward.String())
	return sb.String()
}

func (i *IpcServer) Cleanup(s *state.State) error {
	if i.listener == nil {
		return nil
	}
	err := i.listener.Close()
	i.wg.Wait()
	_ = os.Remove(i.path)
	return err
}

// IPCGet sends a single command to a running node and returns its reply.
func IPCGet(path, cmd string) (string, error) {
	conn, err := net.DialTimeout("unix", path, 5*time.Second)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))

	_, err = rw.WriteString(cmd + "\n")
	if err != nil {
		return "", err
	}
	err = rw.Flush()
	if err != nil {
		return "", err
	}

	res, err := rw.ReadString(0)
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSuffix(res, "\x00"), nil
}

// IPCStream sends a command to a running node and copies everything it replies with to w,
// until the node closes the connection.
func IPCStream(path, cmd string, w io.Writer) error {
	conn, err := net.DialTimeout("unix", path, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = io.WriteString(conn, cmd+"\n")
	if err != nil {
		return err
	}
	_, err = io.Copy(w, conn)
	return err
}
