package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/piscesgamedev/pisces/internal/cliconfig"
	"github.com/piscesgamedev/pisces/pkg/client"
	"github.com/piscesgamedev/pisces/pkg/codec"
	plog "github.com/piscesgamedev/pisces/pkg/log"
	"github.com/piscesgamedev/pisces/pkg/route"
	"github.com/piscesgamedev/pisces/plugins/configwatcher"
)

const helpBanner = `
 ____  _
|  _ \(_)___  ___ ___  ___
| |_) | / __|/ __/ _ \/ __|
|  __/| \__ \ (_|  __/\__ \
|_|   |_|___/\___\___||___/
`

const helpDescription = `
Interactive game server session client.

Each input line is sent as a request: "primary sub payload".
Prefix a line with "notify" or "!" to send without waiting for a response.
"stats" prints session counters, "quit" disconnects.

Highlights:
  - TCP, UDP and WebSocket transports with one framing.
  - Heartbeats, automatic reconnect, and outbound rate limiting.
  - Rate limit and dedup settings reload when the config file changes.
`

var longHelp = strings.TrimSpace(helpBanner) + "\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  pisces --host 127.0.0.1 --port 9090
  pisces --env dev --channel websocket --ws-path /ws
  echo "1 5 hello" | pisces --config $HOME/.pisces/config.toml --metrics-addr :2112
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "pisces",
		Short:   "Interactive game server session client",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
				cfg.ConfigPath = cfgFile
			}

			// Environment overrides the file; flags override both.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			lvlLog, err := cliconfig.LoggerWithLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			log = lvlLog
			log.Debug().Interface("config", cfg).Msg("configuration")

			return run(cmd.Context(), cfg, changed, log, os.Stdin, os.Stdout)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.pisces/config.toml)")
	root.Flags().StringVar(&cfg.Host, "host", cfg.Host, "server host, or a ws:// URL for the websocket channel")
	root.Flags().IntVar(&cfg.Port, "port", cfg.Port, "server port")
	root.Flags().StringVar(&cfg.Environment, "env", cfg.Environment, "named server environment from the config file")
	root.Flags().StringVar(&cfg.ChannelType, "channel", cfg.ChannelType, "transport: tcp, udp or websocket")
	root.Flags().StringVar(&cfg.WebSocketPath, "ws-path", cfg.WebSocketPath, "websocket request path")

	root.Flags().DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "connection attempt timeout")
	root.Flags().DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "request timeout")
	root.Flags().DurationVar(&cfg.HeartbeatInterval, "heartbeat-interval", cfg.HeartbeatInterval, "heartbeat interval")
	root.Flags().IntVar(&cfg.HeartbeatTimeoutCount, "heartbeat-timeout-count", cfg.HeartbeatTimeoutCount, "missed heartbeats before reconnecting")

	root.Flags().BoolVar(&cfg.AutoReconnect, "auto-reconnect", cfg.AutoReconnect, "reconnect after connection loss")
	root.Flags().DurationVar(&cfg.ReconnectInterval, "reconnect-interval", cfg.ReconnectInterval, "delay before a reconnect attempt")
	root.Flags().DurationVar(&cfg.MaxReconnectInterval, "max-reconnect-interval", cfg.MaxReconnectInterval, "upper bound of the reconnect delay")
	root.Flags().IntVar(&cfg.MaxReconnectCount, "max-reconnect-count", cfg.MaxReconnectCount, "failed reconnects before giving up (0 = unlimited)")

	root.Flags().IntVar(&cfg.ReceiveBufferSize, "receive-buffer", cfg.ReceiveBufferSize, "receive buffer size in bytes")
	root.Flags().IntVar(&cfg.SendBufferSize, "send-buffer", cfg.SendBufferSize, "send buffer size in bytes")
	if err := root.Flags().MarkHidden("receive-buffer"); err != nil {
		log.Info().Err(err).Msg("failed to hide receive-buffer flag")
	}
	if err := root.Flags().MarkHidden("send-buffer"); err != nil {
		log.Info().Err(err).Msg("failed to hide send-buffer flag")
	}

	root.Flags().BoolVar(&cfg.EnableRateLimit, "rate-limit", cfg.EnableRateLimit, "limit outbound messages")
	root.Flags().Float64Var(&cfg.MaxSendRate, "max-send-rate", cfg.MaxSendRate, "outbound messages per second")
	root.Flags().IntVar(&cfg.MaxBurstSize, "max-burst", cfg.MaxBurstSize, "outbound burst size")
	root.Flags().BoolVar(&cfg.EnableRequestDedup, "dedup", cfg.EnableRequestDedup, "allow one in-flight request per route")
	root.Flags().StringSliceVar(&cfg.DedupExcludeRoutes, "dedup-exclude", cfg.DedupExcludeRoutes, "routes exempt from dedup (primary-sub)")

	root.Flags().IntVar(&cfg.PendingWarnThreshold, "pending-warn-threshold", cfg.PendingWarnThreshold, "pending request count that triggers a warning")
	if err := root.Flags().MarkHidden("pending-warn-threshold"); err != nil {
		log.Info().Err(err).Msg("failed to hide pending-warn-threshold flag")
	}

	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, error or off")
	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("pisces")
		os.Exit(1)
	}
}

// run connects, drives requests from in until EOF, quit, or a signal, and
// prints responses and broadcasts to out. extra options are applied after
// the ones derived from cfg.
func run(parent context.Context, cfg cliconfig.Config, changed map[string]bool, log zerolog.Logger, in io.Reader, out io.Writer, extra ...client.Option) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	libCfg, err := cfg.ClientConfig()
	if err != nil {
		return err
	}
	names, err := cfg.RouteNames()
	if err != nil {
		return err
	}
	route.RegisterAll(names)

	var outMu sync.Mutex
	printf := func(format string, args ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	handler := client.EventHandlerFuncs{
		StateChange: func(e client.StateChangeEvent) {
			printf("* state %s -> %s (%s)\n", e.Previous, e.Current, e.Reason)
		},
		Message: func(m *codec.Message) {
			printf("< broadcast %s %q\n", m.Route, m.Data)
		},
		Error: func(err error) {
			log.Warn().Err(err).Msg("session error")
		},
	}

	opts := []client.Option{
		client.WithLogger(plog.NewZerologAdapterWithLogger(log)),
		client.WithEventHandler(handler),
	}
	if cfg.ConfigPath != "" {
		opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.Config{
			Path:    cfg.ConfigPath,
			Base:    cfg,
			Changed: changed,
		}))
	}
	opts = append(opts, extra...)

	c, err := client.New(libCfg, opts...)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer c.Close()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, c, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	log.Info().Str("session", c.ID()).Str("state", c.State().String()).Msg("connected")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Warn().Err(err).Msg("read input")
		}
	}()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("received signal, stopping...")
			return c.Close()

		case line, ok := <-lines:
			if !ok {
				inflight.Wait()
				return c.Disconnect(context.Background())
			}
			cmd, err := parseLine(line)
			if errors.Is(err, errEmptyLine) {
				continue
			}
			if err != nil {
				printf("! %v\n", err)
				continue
			}

			switch cmd.kind {
			case cmdQuit:
				inflight.Wait()
				return c.Disconnect(context.Background())
			case cmdStats:
				s := c.Stats()
				printf("= sent=%d received=%d rate_limited=%d timeouts=%d reconnects=%d in_flight=%d latency=%s\n",
					s.MessagesSent, s.MessagesReceived, s.RateLimited, s.Timeouts, s.Reconnects, s.InFlight, s.AverageLatency)
			case cmdNotify:
				if res := c.Notify(cmd.route, cmd.payload); res != client.ResultSuccess {
					printf("! notify %s: %s\n", cmd.route, res)
				}
			case cmdRequest:
				inflight.Add(1)
				go func(cmd command) {
					defer inflight.Done()
					resp, err := c.Request(ctx, cmd.route, cmd.payload)
					if err != nil {
						printf("! request %s: %v\n", cmd.route, err)
						return
					}
					printf("> %s #%d %q\n", resp.Route, resp.MsgID, resp.Data)
				}(cmd)
			}
		}
	}
}

func serveMetrics(addr string, c *client.Client, log zerolog.Logger) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c.Collector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server")
		}
	}()
	return srv
}
