/* ippserver - a self-contained network IPP server
 *
 * Program entry point: flags, startup sequencing, main loop
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [options] printer-name\n\n", os.Args[0])
	flag.PrintDefaults()
}

// parseArgs turns the CLI surface of §6 into a Configuration. The -s
// flag's "ppm[,color-ppm]" shape is hand-parsed; everything else maps
// one flag to one field
func parseArgs(args []string) (cfg Configuration, err error) {
	cfg = DefaultConfiguration()

	fs := flag.NewFlagSet("ippserver", flag.ContinueOnError)
	fs.Usage = usage

	fs.BoolVar(&cfg.Duplex, "2", cfg.Duplex, "printer supports two-sided printing")
	fs.StringVar(&cfg.Make, "M", cfg.Make, "manufacturer name")
	fs.StringVar(&cfg.SpoolDir, "d", cfg.SpoolDir, "spool directory")
	fs.StringVar(&cfg.Formats, "f", cfg.Formats, "comma-separated document-format-supported list")
	fs.StringVar(&cfg.Icon, "i", cfg.Icon, "path to printer icon (PNG)")
	fs.StringVar(&cfg.Location, "l", cfg.Location, "printer-location")
	fs.StringVar(&cfg.Model, "m", cfg.Model, "printer make-and-model model part")
	fs.IntVar(&cfg.Port, "p", cfg.Port, "port; 0 means auto-assign")
	fs.StringVar(&cfg.RegType, "r", cfg.RegType, "DNS-SD service type for the real service")
	speeds := fs.String("s", "10,0", "ppm[,color-ppm]")

	if err = fs.Parse(args); err != nil {
		return Configuration{}, err
	}

	if fs.NArg() != 1 {
		usage()
		return Configuration{}, flag.ErrHelp
	}
	cfg.Name = fs.Arg(0)

	parts := strings.SplitN(*speeds, ",", 2)
	if cfg.PPM, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return Configuration{}, fmt.Errorf("-s: invalid ppm value: %w", err)
	}
	if len(parts) == 2 {
		if cfg.ColorPPM, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
			return Configuration{}, fmt.Errorf("-s: invalid color-ppm value: %w", err)
		}
	}

	return cfg, nil
}

func main() {
	os.Exit(run())
}

// run contains the whole startup sequence, returning the process exit
// code rather than calling os.Exit directly so deferred cleanup always
// executes
func run() int {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	Console.ToColorConsole()
	Console.Begin().Info(' ', "starting %s", cfg.Name).Commit()

	listeners, err := NewListeners(cfg.Port)
	if err != nil {
		Console.Begin().Error('!', "%s", err).Commit()
		return 1
	}
	defer listeners.Close()

	host := localHostname()
	uri := fmt.Sprintf("ipp://%s:%d/ipp", host, listeners.Port)
	iconURI := fmt.Sprintf("http://%s:%d/%s", host, listeners.Port, "icon.png")
	adminURL := fmt.Sprintf("http://%s:%d/", host, listeners.Port)

	log := NewLogger().ToColorConsole()
	log.Cc(LogAll, Console)

	printer := NewPrinter(cfg, uri, iconURI, adminURL, log)

	publisher := NewDnsSdPublisher(printerDnsSdServices(cfg, adminURL, listeners.Port))
	if err := publisher.Publish(cfg.Name); err != nil {
		log.Begin().Error('!', "%s", err).Commit()
		return 1
	}
	defer publisher.Unpublish()

	srv := NewHTTPServer(printer, log)

	errc := make(chan error, 2)
	go func() { errc <- srv.Serve(listeners.IPv4) }()
	go func() { errc <- srv.Serve(listeners.IPv6) }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go reapLoop(ctx, printer)

	Console.Begin().Info(' ', "%s: listening on port %d, %s", cfg.Name, listeners.Port, uri).Commit()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			log.Begin().Error('!', "%s", err).Commit()
		}
	}

	srv.Close()

	return 0
}

// reapLoop periodically retires canceled jobs' deferred state
// transitions, per JobCleanupInterval
func reapLoop(ctx context.Context, p *Printer) {
	ticker := time.NewTicker(JobCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ReapTerminalJobs(ctx)
		}
	}
}

// localHostname resolves the name this printer advertises itself as
// in its own URIs, falling back to "localhost" if the OS can't supply
// one
func localHostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	return name
}
