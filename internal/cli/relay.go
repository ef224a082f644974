package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mindcanvas/internal/config"
	"github.com/matzehuels/mindcanvas/pkg/observability/prom"
	"github.com/matzehuels/mindcanvas/pkg/relay"
)

type relayOptions struct {
	addr      string
	bridge    string
	noStorage bool
}

// relayCommand runs the websocket relay server.
func (c *CLI) relayCommand() *cobra.Command {
	var opts relayOptions

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the collaboration relay server",
		Long: `Run the websocket relay that editors connect to with transport "websocket".

Editors join a room per document at /documents/{id}/ws?user=<id>; every
event is forwarded to the other members of the room. Documents in the
configured storage are served at /documents. With a bridge, rooms span
several relay instances through Redis or NATS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRelay(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.bridge, "bridge", "", "bridge transport: none, redis, nats (default from config)")
	cmd.Flags().BoolVar(&opts.noStorage, "no-storage", false, "do not serve the document routes")

	return cmd
}

func (c *CLI) runRelay(cmd *cobra.Command, opts relayOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := c.config()
	if err != nil {
		return err
	}
	logger := c.logger(ctx)

	addr := cfg.Relay.Addr
	if opts.addr != "" {
		addr = opts.addr
	}
	bridgeName := cfg.Relay.Bridge
	if opts.bridge != "" {
		bridgeName = opts.bridge
	}

	serverOpts := relay.Options{
		Logger:         logger,
		AllowedOrigins: cfg.Relay.AllowedOrigins,
		SendBuffer:     cfg.Relay.SendBuffer,
	}

	if cfg.Relay.Metrics {
		metrics := prom.New()
		metrics.Install()
		serverOpts.Metrics = metrics.Handler()
	}

	if !opts.noStorage {
		be, err := openStorage(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer be.close(context.Background())
		serverOpts.Persister = be
		printKeyValue("Storage", be.name+" "+be.where)
	}

	if bridgeName != config.TransportNone && bridgeName != "" {
		bridge, err := openChannel(ctx, bridgeName, cfg.Collab, "relay-"+hostname(), logger)
		if err != nil {
			return err
		}
		defer bridge.Close()
		serverOpts.Bridge = bridge
		printKeyValue("Bridge", bridge.Name())
	}

	srv := relay.New(serverOpts)

	printSuccess("Relay listening on %s", StyleHighlight.Render("http://"+addr))
	if serverOpts.Metrics != nil {
		printKeyValue("Metrics", "http://"+addr+"/metrics")
	}

	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return err
	}
	printInfo("Relay stopped")
	return nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "local"
	}
	return h
}
