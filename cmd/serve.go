package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"tablechat/agent"
	"tablechat/checkpoint"
	"tablechat/config"
	"tablechat/wsbridge"
)

var serveConfigPath string
var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API over WebSocket",
	Long: `Start a long-running process exposing the conversational API at /ws.
Clients send JSON requests (chat, history, clear, questions) and chat turns
stream back token frames ending with a done frame.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		cfg, err := config.LoadAndValidate(serveConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		logger := hclog.New(&hclog.LoggerOptions{
			Name:       "tablechat",
			Level:      hclog.Info,
			Output:     os.Stderr,
			JSONFormat: true,
		})

		saver, err := checkpoint.NewSaver(ctx, cfg.Storage, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening checkpoint store: %v\n", err)
			os.Exit(1)
		}

		registry, err := agent.NewRegistry(ctx, cfg, saver, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer registry.Close()

		mux := http.NewServeMux()
		mux.Handle("/ws", wsbridge.NewServer(registry, logger))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		})

		srv := &http.Server{
			Addr:              serveAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		logger.Info("serving", "addr", serveAddr, "platforms", registry.Platforms())

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		case <-stop:
		}

		fmt.Println("\nShutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", ".", "Path to config file or directory")
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":8765", "Listen address")
}
