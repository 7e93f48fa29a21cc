package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/lr/internal/api"
	"github.com/joescharf/lr/internal/daemon"
	"github.com/joescharf/lr/internal/output"
	webui "github.com/joescharf/lr/internal/ui"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and web UI",
	Long: `Start an HTTP server that serves the review API under /api and the
embedded web UI on every other path. By default it listens on port 3001.

Use 'lr serve start' to run it in the background and 'lr serve stop' to
stop it again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context(), viper.GetInt("port"))
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 3001, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.PersistentFlags().Lookup("port"))

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "lr-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "lr-serve.log")
}

func serveRun(ctx context.Context, port int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	pf := pidFile()
	if st, running := pf.IsRunning(); running && st.PID != os.Getpid() {
		return fmt.Errorf("lr server already running (PID %d, port %d)", st.PID, st.Port)
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	repo, err := repoPath()
	if err != nil {
		return err
	}
	uiHandler, err := webui.Handler()
	if err != nil {
		return fmt.Errorf("failed to initialize UI handler: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.NewServer(svc, repo, logger).Handler(uiHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := os.MkdirAll(filepath.Dir(pf.Path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := pf.Write(port); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	defer func() { _ = pf.Remove() }()

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	logger.Info().Int("port", port).Str("repo", repo).Msg("server started")
	ui.Success("Serving lr at %s", output.Cyan(fmt.Sprintf("http://localhost:%d", port)))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on :%d: %w", port, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serveStartRun() error {
	pf := pidFile()
	if st, running := pf.IsRunning(); running {
		return fmt.Errorf("lr server already running (PID %d)", st.PID)
	}

	port := viper.GetInt("port")
	if dryRun {
		ui.DryRunMsg("Would start lr server on port %d", port)
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	repo, err := repoPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(pf.Path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	args := []string{"serve", "--port", strconv.Itoa(port), "--repo", repo}
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if err := pf.WriteState(daemon.State{PID: child.Process.Pid, Port: port, Started: time.Now().UTC()}); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	_ = child.Process.Release()

	ui.Success("Started lr server (PID %d) at %s", child.Process.Pid, output.Cyan(fmt.Sprintf("http://localhost:%d", port)))
	ui.Info("Logs: %s", serveLogPath())
	return nil
}

func serveStatusRun() error {
	pf := pidFile()
	st, running := pf.IsRunning()
	if !running {
		// A leftover file from a crashed server.
		_ = pf.Remove()
		ui.Info("lr server is not running")
		return nil
	}

	msg := fmt.Sprintf("lr server is running (PID %d", st.PID)
	if st.Port > 0 {
		msg += fmt.Sprintf(", http://localhost:%d", st.Port)
	}
	if !st.Started.IsZero() {
		msg += ", started " + timeAgo(st.Started)
	}
	ui.Success("%s)", msg)
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	st, running := pf.IsRunning()
	if !running {
		_ = pf.Remove()
		return fmt.Errorf("lr server is not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop lr server (PID %d)", st.PID)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	if !pf.WaitExit(shutdownTimeout, 100*time.Millisecond) {
		ui.Warning("Server did not exit after %s, killing it", shutdownTimeout)
		if err := pf.Signal(sigKILL()); err != nil {
			return fmt.Errorf("kill server: %w", err)
		}
	}
	if err := pf.Remove(); err != nil {
		return fmt.Errorf("remove PID file: %w", err)
	}

	ui.Success("Stopped lr server (PID %d)", st.PID)
	return nil
}
