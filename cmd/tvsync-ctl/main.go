package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/merci1994dz/appdreamer-creator/internal/config"
	"github.com/merci1994dz/appdreamer-creator/internal/ipc"
)

var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	ping := flag.Bool("ping", false, "ping daemon and print version")
	status := flag.Bool("status", false, "print daemon status")
	refresh := flag.Bool("refresh", false, "sync the channel list now")
	channels := flag.Bool("channels", false, "list cached channels")
	socketPath := flag.String("socket", "", "unix socket path")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}
	if !*ping && !*status && !*refresh && !*channels {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.NewConfigWithOptions(config.Options{SocketPath: *socketPath})
	if err != nil {
		fmt.Printf("config error: %v\n", err)
		os.Exit(1)
	}
	client, err := ipc.Dial(cfg.SocketPath)
	if err != nil {
		fmt.Printf("dial error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	timeout := 5 * time.Second
	if *refresh {
		timeout = cfg.SyncTimeout + 30*time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	switch {
	case *ping:
		ver, err := client.Ping(ctx)
		if err != nil {
			fmt.Printf("ping error: %v\n", err)
			return
		}
		fmt.Println(ver)
	case *status:
		reply, err := client.Status(ctx)
		if err != nil {
			fmt.Printf("status error: %v\n", err)
			return
		}
		fmt.Printf("%s: %s\n", reply.State, reply.Message)
	case *refresh:
		reply, err := client.Refresh(ctx, true)
		if err != nil {
			fmt.Printf("refresh error: %v\n", err)
			return
		}
		fmt.Println(reply.Message)
	case *channels:
		reply, err := client.Channels(ctx, 0)
		if err != nil {
			fmt.Printf("channels error: %v\n", err)
			return
		}
		for _, ch := range reply.Channels {
			fmt.Printf("%s\t%s\n", ch.ID, ch.Name)
		}
	}
}
