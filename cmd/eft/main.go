// Command eft is the raw-Ethernet CLI entry point: eft <mtu> <interface> sender|receiver
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"eftp/internal/config"
	"eftp/internal/dispatcher"
	"eftp/internal/integrity"
	"eftp/internal/link"
	"eftp/internal/logger"
)

const fileCount = 1000

func main() {
	if err := logger.InitLoggers("./logs"); err != nil {
		fmt.Fprintln(os.Stderr, "warning: could not set up file logging:", err)
	}
	defer logger.CloseLoggers()

	if len(os.Args) != 4 {
		fmt.Fprintln(os.Stderr, "usage: eft <mtu> <interface> sender|receiver")
		os.Exit(1)
	}

	mtu, err := strconv.Atoi(os.Args[1])
	if err != nil {
		fatal(&config.ValidationError{Field: "mtu", Message: "not a number"})
	}
	iface := os.Args[2]
	role := os.Args[3]

	if err := config.ValidateMTU(mtu); err != nil {
		fatal(err)
	}
	if err := config.ValidateInterfaceName(iface); err != nil {
		fatal(err)
	}
	if err := config.ValidateRole(role); err != nil {
		fatal(err)
	}

	lnk, err := link.NewEthernetLink(iface, mtu)
	if err != nil {
		fatal(err)
	}

	d := dispatcher.New(lnk, config.Role(role), logger.DefaultLogger)
	defer d.Close()

	switch config.Role(role) {
	case config.RoleSender:
		runSender(d, mtu)
	case config.RoleReceiver:
		runReceiver(d)
	}
}

func runSender(d *dispatcher.Dispatcher, mtu int) {
	for id := 0; id < fileCount; id++ {
		path := fmt.Sprintf("./data/data%d", id)
		data, err := os.ReadFile(path)
		if err != nil {
			continue // matches original_source: missing files are skipped, not fatal
		}

		stream, err := d.OpenSend(link.BroadcastMAC, uint16(id))
		if err != nil {
			logger.Warn("open send %d: %v", id, err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := stream.Write(ctx, data, mtu); err != nil {
			logger.Warn("send %d: %v", id, err)
		}
		cancel()
	}
}

func runReceiver(d *dispatcher.Dispatcher) {
	var wg sync.WaitGroup
	for id := 0; id < fileCount; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			stream := d.Stream(link.BroadcastMAC, uint16(id))
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			data, err := stream.Read(ctx)
			if err != nil {
				return
			}
			path := fmt.Sprintf("./received/data%d", id)
			if err := os.WriteFile(path, data, 0644); err != nil {
				logger.Warn("write %s: %v", path, err)
				return
			}
			logger.Info("received %s (%d bytes, sha256=%s)", path, len(data), integrity.SHA256(data))
		}(id)
	}
	wg.Wait()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
