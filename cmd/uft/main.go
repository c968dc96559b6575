// Command uft is the UDP CLI entry point: uft <mtu> sender|receiver
//
// Per spec.md §6 the positional contract is exactly <mtu> and the role; the
// peer address is configured via EFTP_HOST/EFTP_PORT environment variables
// (defaulting to config.DefaultMonitorSettings' host/port) rather than
// extra positional arguments, since a UDP peer has no broadcast-address
// equivalent to raw Ethernet's ff:ff:ff:ff:ff:ff.
package main

import (
	"context"
	"fmt"
	"net"
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

	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: uft <mtu> sender|receiver")
		os.Exit(1)
	}

	mtu, err := strconv.Atoi(os.Args[1])
	if err != nil {
		fatal(&config.ValidationError{Field: "mtu", Message: "not a number"})
	}
	role := os.Args[2]

	if err := config.ValidateMTU(mtu); err != nil {
		fatal(err)
	}
	if err := config.ValidateRole(role); err != nil {
		fatal(err)
	}

	host, port := peerFromEnv()

	var lnk *link.UDPLink
	if config.Role(role) == config.RoleReceiver {
		lnk, err = link.NewUDPLink("0.0.0.0", port)
	} else {
		lnk, err = link.NewUDPLink("0.0.0.0", 0)
	}
	if err != nil {
		fatal(err)
	}

	d := dispatcher.New(lnk, config.Role(role), logger.DefaultLogger)
	defer d.Close()

	switch config.Role(role) {
	case config.RoleSender:
		runSender(d, mtu, host, port)
	case config.RoleReceiver:
		runReceiver(d)
	}
}

func peerFromEnv() (string, int) {
	defaults := config.DefaultMonitorSettings()
	host := defaults.Host
	port := defaults.Port
	if h := os.Getenv("EFTP_HOST"); h != "" {
		host = h
	}
	if p := os.Getenv("EFTP_PORT"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	return host, port
}

func runSender(d *dispatcher.Dispatcher, mtu int, host string, port int) {
	dst := link.UDPAddress{Addr: &net.UDPAddr{IP: net.ParseIP(host), Port: port}}

	for id := 0; id < fileCount; id++ {
		path := fmt.Sprintf("./data/data%d", id)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		stream, err := d.OpenSend(dst, uint16(id))
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
	host, port := peerFromEnv()
	peer := link.UDPAddress{Addr: &net.UDPAddr{IP: net.ParseIP(host), Port: port}}

	var wg sync.WaitGroup
	for id := 0; id < fileCount; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			stream := d.Stream(peer, uint16(id))
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
