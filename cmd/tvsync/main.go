package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/oauth2"

	"github.com/merci1994dz/appdreamer-creator/internal/config"
	"github.com/merci1994dz/appdreamer-creator/internal/ipc"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		runTUI(os.Args[1:])
		return
	}

	switch os.Args[1] {
	case "daemon":
		runDaemon(os.Args[2:])
	case "refresh":
		runRefresh(os.Args[2:])
	case "ping":
		runPing(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "channels":
		runChannels(os.Args[2:])
	case "token":
		runToken(os.Args[2:])
	case "version":
		fmt.Println(version)
	case "help":
		usage()
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("Usage: tvsync <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  daemon   Start the catalog sync daemon")
	fmt.Println("  refresh  Sync the channel list now")
	fmt.Println("  ping     Ping the daemon and print version")
	fmt.Println("  status   Launch status TUI")
	fmt.Println("  channels List cached channels")
	fmt.Println("  token    Manage source credentials (set|delete)")
	fmt.Println("  version  Print CLI version")
	fmt.Println("  help     Show this help")
	fmt.Println("(No command opens the status TUI)")
}

func runDaemon(args []string) {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (JSON)")
	logLevel := fs.String("log-level", "", "log level")
	socketPath := fs.String("socket", "", "unix socket path")
	_ = fs.Parse(args)

	opts := config.Options{
		ConfigPath: *configPath,
		LogLevel:   *logLevel,
		SocketPath: *socketPath,
	}

	daemon, err := InitializeDaemon(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		os.Exit(1)
	}
	if daemon.Logger != nil {
		defer daemon.Logger.Sync()
	}
	if daemon.IPC != nil {
		daemon.IPC.WithVersion(version)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := daemon.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}

func dial(socketPath string) (*ipc.Client, error) {
	cfg, err := config.NewConfigWithOptions(config.Options{SocketPath: socketPath})
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	client, err := ipc.Dial(cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("dial error: %w", err)
	}
	return client, nil
}

func runRefresh(args []string) {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	socketPath := fs.String("socket", "", "unix socket path")
	force := fs.Bool("force", true, "replace the cache even when the catalog is unchanged")
	timeout := fs.Duration("timeout", 2*time.Minute, "timeout for request")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := dial(*socketPath)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer client.Close()

	reply, err := client.Refresh(ctx, *force)
	if err != nil {
		fmt.Printf("refresh error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(reply.Message)
	if reply.Outcome == "failed" {
		os.Exit(1)
	}
}

func runPing(args []string) {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	socketPath := fs.String("socket", "", "unix socket path")
	timeout := fs.Duration("timeout", 3*time.Second, "timeout for request")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := dial(*socketPath)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer client.Close()

	ver, err := client.Ping(ctx)
	if err != nil {
		fmt.Printf("ping error: %v\n", err)
		return
	}
	fmt.Println(ver)
}

func runChannels(args []string) {
	fs := flag.NewFlagSet("channels", flag.ExitOnError)
	socketPath := fs.String("socket", "", "unix socket path")
	limit := fs.Int("limit", 0, "max channels to list (0 for daemon default)")
	timeout := fs.Duration("timeout", 5*time.Second, "timeout for request")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := dial(*socketPath)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer client.Close()

	reply, err := client.Channels(ctx, *limit)
	if err != nil {
		fmt.Printf("channels error: %v\n", err)
		os.Exit(1)
	}
	for _, ch := range reply.Channels {
		fmt.Printf("%s\t%s\t%s\n", ch.ID, ch.Name, ch.StreamURL)
	}
	fmt.Printf("%d of %d channels\n", len(reply.Channels), reply.Total)
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	socketPath := fs.String("socket", "", "unix socket path")
	interval := fs.Duration("interval", 2*time.Second, "refresh interval")
	once := fs.Bool("once", false, "print status once and exit")
	_ = fs.Parse(args)

	if *once {
		printStatusOnce(*socketPath)
		return
	}

	m := newModel(*socketPath, *interval)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Printf("ui error: %v\n", err)
	}
}

func printStatusOnce(socketPath string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client, err := dial(socketPath)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer client.Close()

	reply, err := client.Status(ctx)
	if err != nil {
		fmt.Printf("status error: %v\n", err)
		return
	}
	fmt.Printf("%s: %s\n", reply.State, reply.Message)
	if reply.LastOutcome != "" {
		fmt.Printf("last sync: %s\n", reply.LastOutcome)
	}
}

func runTUI(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	socketPath := fs.String("socket", "", "unix socket path")
	interval := fs.Duration("interval", 2*time.Second, "refresh interval")
	_ = fs.Parse(args)

	m := newModel(*socketPath, *interval)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Printf("ui error: %v\n", err)
	}
}

func runToken(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: tvsync token set -source NAME -token VALUE | tvsync token delete -source NAME")
		os.Exit(2)
	}
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (JSON)")
	source := fs.String("source", "", "source name")
	value := fs.String("token", "", "access token")
	refresh := fs.String("refresh-token", "", "refresh token")
	expiresIn := fs.Duration("expires-in", 0, "access token lifetime (0 for no expiry)")
	_ = fs.Parse(args[1:])

	app, err := InitializeTokens(config.Options{ConfigPath: *configPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		os.Exit(1)
	}
	defer app.Storage.Close()
	defer app.Logger.Sync()

	ctx := context.Background()
	switch args[0] {
	case "set":
		tok := &oauth2.Token{AccessToken: *value, RefreshToken: *refresh}
		if *expiresIn > 0 {
			tok.Expiry = time.Now().Add(*expiresIn)
		}
		err = app.Auth.SetToken(ctx, *source, tok)
	case "delete":
		err = app.Auth.DeleteToken(ctx, *source)
	default:
		err = fmt.Errorf("unknown token command %q", args[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "token %s failed: %v\n", args[0], err)
		os.Exit(1)
	}
	fmt.Println("ok")
}
