package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"reflect"
	"runtime"
	"runtime/trace"
	"syscall"
	"time"

	"github.com/encodeous/dvnet/perf"
	"github.com/encodeous/dvnet/state"
	"github.com/encodeous/tint"
	"github.com/goccy/go-yaml"
	slogmulti "github.com/samber/slog-multi"
	"go.uber.org/multierr"
)

var ErrShutdownSignal = errors.New("received shutdown signal")

// setupDebugging starts the debug facilities enabled by flags. The returned func flushes them.
func setupDebugging() func() {
	stop := func() {}
	if state.DBG_trace {
		f, err := os.Create("trace.out")
		if err != nil {
			log.Fatal(err)
		}
		err = trace.Start(f)
		if err != nil {
			log.Println("failed to start tracing:", err)
			_ = f.Close()
		} else {
			log.Println("Started tracing")
			stop = func() {
				trace.Stop()
				_ = f.Close()
			}
		}
	}
	if state.DBG_debug {
		go func() {
			// serves /debug/metrics and /debug/vars
			log.Println(http.ListenAndServe("0.0.0.0:6060", nil))
		}()
	}
	return stop
}

func ReadCentralConfig(centralPath string) (*state.CentralCfg, error) {
	var centralCfg state.CentralCfg
	file, err := os.ReadFile(centralPath)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &centralCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", centralPath, err)
	}
	return &centralCfg, nil
}

func ReadNodeConfig(nodePath string) (*state.LocalCfg, error) {
	var nodeCfg state.LocalCfg
	file, err := os.ReadFile(nodePath)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &nodeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", nodePath, err)
	}
	return &nodeCfg, nil
}

// Bootstrap loads and validates both configs, then runs the node until it is stopped.
func Bootstrap(centralPath, nodePath, logPath string, verbose bool) error {
	defer setupDebugging()()
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	centralCfg, err := ReadCentralConfig(centralPath)
	if err != nil {
		return err
	}
	nodeCfg, err := ReadNodeConfig(nodePath)
	if err != nil {
		return err
	}
	if logPath != "" {
		nodeCfg.LogPath = logPath
	}

	err = state.CentralConfigValidator(centralCfg)
	if err != nil {
		return err
	}
	err = state.NodeConfigValidator(nodeCfg, centralCfg)
	if err != nil {
		return err
	}
	return Start(*centralCfg, *nodeCfg, level, nil, nil)
}

func NewLogger(ncfg state.LocalCfg, logLevel slog.Level) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        logLevel,
			AddSource:    false,
			CustomPrefix: ncfg.Id.String(),
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if ncfg.LogPath != "" {
		err := os.MkdirAll(path.Dir(ncfg.LogPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(ncfg.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel}))
	}
	return slog.New(slogmulti.Fanout(handlers...)), nil
}

// Start runs a node until its context is cancelled. If initState is not nil, it receives
// the node's state before any module is initialized.
func Start(ccfg state.CentralCfg, ncfg state.LocalCfg, logLevel slog.Level, aux map[string]any, initState **state.State) error {
	ctx, cancel := context.WithCancelCause(context.Background())

	dispatch := make(chan func(env *state.State) error, 128)

	logger, err := NewLogger(ncfg, logLevel)
	if err != nil {
		cancel(err)
		return err
	}

	s := state.State{
		Modules: make(map[string]state.NyModule),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			CentralCfg:      ccfg,
			LocalCfg:        ncfg,
			Log:             logger,
			AuxConfig:       aux,
		},
	}
	if initState != nil {
		*initState = &s
	}

	s.Log.Info("init modules")
	err = initModules(&s)
	if err != nil {
		Stop(&s)
		return err
	}
	s.Log.Info("init modules complete")
	if ready, ok := aux["ready"].(func(*state.State)); ok {
		ready(&s)
	}

	if _, ok := aux["vnet"]; !ok {
		s.Log.Info("dvnet has been initialized. To gracefully exit, send SIGINT or Ctrl+C.")
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			defer signal.Stop(c)
			select {
			case <-c:
				s.Cancel(ErrShutdownSignal)
			case <-ctx.Done():
				return
			}
		}()
	}

	return MainLoop(&s, dispatch)
}

func initModules(s *state.State) error {
	var modules []state.NyModule
	modules = append(modules, &RouteTrace{})
	modules = append(modules, &DvRouter{})
	modules = append(modules, &IpcServer{})

	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return err
		}
	}
	return nil
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			if fun == nil {
				goto endLoop
			}
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > state.SlowDispatchThreshold {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	cause := context.Cause(s.Context)
	s.Log.Info("stopped main loop", "reason", cause)
	err := Stop(s)
	if cause != nil && !errors.Is(cause, context.Canceled) && !errors.Is(cause, ErrShutdownSignal) {
		return multierr.Append(cause, err)
	}
	return err
}

// Stop cancels the node and cleans up every module, once.
func Stop(s *state.State) error {
	if s.Stopping.Swap(true) {
		return nil // don't stop twice
	}
	s.Cancel(context.Canceled)
	s.Log.Info("cleaning up modules")
	var errs error
	for moduleName, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", moduleName, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", moduleName, err))
		}
	}
	s.Log.Info("stopped")
	return errs
}
