package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"food-explorer/pkg/cache"
	"food-explorer/pkg/cart"
	"food-explorer/pkg/catalog"
	"food-explorer/pkg/config"
	"food-explorer/pkg/logger"
	"food-explorer/pkg/offapi"
	"food-explorer/pkg/pagecapture"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries what every command needs once flags are parsed.
type cli struct {
	configPath string
	verbose    bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "explorer",
		Short: "Browse the Open Food Facts product database",
		Long: `explorer searches Open Food Facts by name or barcode, filters and sorts
the results, and keeps a shopping cart.

Run "explorer serve" for the HTTP API, or use the one-shot commands below.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			if c.verbose {
				cfg.Log.Level = "debug"
			}
			log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			c.cfg, c.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Flush()
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "explorer.yaml", "Path to the YAML config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		c.serveCmd(),
		c.initCmd(),
		c.browseCmd(),
		c.searchCmd(),
		c.barcodeCmd(),
		c.categoriesCmd(),
		c.captureCmd(),
	)
	return root
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the explorer HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	cfg := c.cfg

	db, err := cache.Open(cfg.Cache.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	productCache, err := cache.New(db, cfg.Cache.TTL)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer productCache.Close()

	c.log.Info("Cache initialized",
		zap.String("path", cfg.Cache.DBPath),
		zap.Duration("ttl", cfg.Cache.TTL))

	if purged, err := productCache.Purge(); err != nil {
		c.log.Warn("Failed to purge expired products", zap.Error(err))
	} else if purged > 0 {
		c.log.Info("Purged expired products", zap.Int64("count", purged))
	}

	carts, err := cart.NewRepository(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to initialize cart storage: %w", err)
	}

	src, err := c.newSource(productCache)
	if err != nil {
		return err
	}

	capturer := pagecapture.New(cfg.Source.BaseURL, c.log)
	capturer.Timeout = cfg.Capture.Timeout
	capturer.Width, capturer.Height = cfg.Capture.Width, cfg.Capture.Height
	capturer.Quality = cfg.Capture.Quality

	a := newApp(c.log, src, carts, capturer, c.pipelineOptions(), cfg.Server.SessionTTL)

	port := cfg.Server.Port
	if ip := GetOutboundIP(); ip != nil {
		fmt.Printf("Local Network URL: http://%s:%s\n", ip.String(), port)
	} else {
		fmt.Println("Could not determine local IP address.")
	}
	fmt.Printf("Access URL: http://localhost:%s\n", port)
	fmt.Printf("API Docs: http://localhost:%s/\n", port)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           a.routes(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		c.log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// newSource builds the Open Food Facts client, optionally behind the product cache.
func (c *cli) newSource(productCache *cache.Cache) (catalog.Source, error) {
	client, err := offapi.NewClient(c.cfg.Source.BaseURL,
		offapi.WithUserAgent(c.cfg.Source.UserAgent),
		offapi.WithTimeout(c.cfg.Source.RequestTimeout),
		offapi.WithLogger(c.log),
	)
	if err != nil {
		return nil, err
	}
	if productCache == nil {
		return client, nil
	}
	return cache.NewSource(client, productCache), nil
}

func (c *cli) pipelineOptions() []catalog.Option {
	return []catalog.Option{
		catalog.WithPageSize(c.cfg.Source.PageSize),
		catalog.WithCategoryLimit(c.cfg.Source.CategoryLimit),
		catalog.WithLogger(c.log),
	}
}

func GetOutboundIP() net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		addrs, _ := net.InterfaceAddrs()
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					return ipnet.IP
				}
			}
		}
		return nil
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP
}
