// Command relayagent is the field-side companion of the incident API.
// It queues reports in a local file while the network is down and
// relays them once the server is reachable again.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/joho/godotenv"

	"linkrelief/relay"
)

func main() {
	_ = godotenv.Load()
	log.SetHandler(text.New(os.Stderr))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "send":
		err = runSend(os.Args[2:])
	case "flush":
		err = runFlush()
	case "queue":
		err = runQueue()
	case "watch":
		err = runWatch()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: relayagent <command>

  send   submit a report, queueing it if the server is unreachable
  flush  relay all queued reports now
  queue  print the number of queued reports
  watch  keep probing connectivity and flush whenever it returns`)
}

func endpoint() string {
	if v := os.Getenv("RELAY_ENDPOINT"); v != "" {
		return v
	}
	return "http://localhost:3001/api/incidents"
}

func healthURL() string {
	if v := os.Getenv("RELAY_HEALTH_URL"); v != "" {
		return v
	}
	return "http://localhost:3001/health"
}

func queueFile() string {
	if v := os.Getenv("RELAY_QUEUE_FILE"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "relay-queue.json"
	}
	return filepath.Join(home, ".linkrelief", "queue.json")
}

func probeInterval() time.Duration {
	if v := os.Getenv("RELAY_PROBE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return 10 * time.Second
}

// logEvents reports relay activity on stderr.
type logEvents struct{}

func (logEvents) ReportQueued(r relay.Report, reason string) {
	log.Infof("Report queued (%s): %s", reason, r.Category)
}
func (logEvents) ReportSent(r relay.Report) {
	log.Infof("Report sent: %s", r.Category)
}
func (logEvents) FlushStarted(pending int) {
	log.Infof("Relaying %d queued report(s)", pending)
}
func (logEvents) ItemSynced(r relay.Report) {
	log.Infof("Relayed queued report %d (%s)", r.Seq, r.Category)
}
func (logEvents) ItemFailed(r relay.Report, err error) {
	log.Warnf("Server rejected queued report %d: %v", r.Seq, err)
}
func (logEvents) FlushCompleted(res relay.FlushResult) {
	log.Infof("Relay pass done: %d synced, %d rejected, %d still queued",
		res.Synced, res.Failed, res.Remaining)
}

// alwaysOnline is used by one-shot commands that talk to the server
// directly; failures still fall back to the queue.
type alwaysOnline struct{}

func (alwaysOnline) Online() bool                       { return true }
func (alwaysOnline) Subscribe(func(online bool)) func() { return func() {} }

func newManager(signal relay.Signal) (*relay.Manager, error) {
	storage, err := relay.NewFileStorage(queueFile())
	if err != nil {
		return nil, err
	}
	submitter := relay.NewHTTPSubmitter(endpoint(), os.Getenv("RELAY_TOKEN"))
	return relay.New(submitter, signal, storage, relay.WithEvents(logEvents{}))
}

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	category := fs.String("category", "", "incident category (required)")
	description := fs.String("description", "", "what happened (required)")
	severity := fs.String("severity", "", "LOW, MEDIUM, HIGH or CRITICAL")
	lat := fs.Float64("lat", 0, "latitude")
	lon := fs.Float64("lon", 0, "longitude")
	reporter := fs.String("reporter", "", "reporter id")
	quick := fs.Bool("quick", false, "mark as quick alert")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *category == "" || *description == "" {
		return fmt.Errorf("send: -category and -description are required")
	}

	probe := relay.NewProbeSignal(healthURL(), probeInterval())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	probe.Start(ctx)
	defer probe.Stop()

	// Give the first probe a moment so an online server is used directly.
	time.Sleep(200 * time.Millisecond)

	m, err := newManager(probe)
	if err != nil {
		return err
	}
	defer m.Close()

	outcome, err := m.SendReport(ctx, relay.Report{
		Category:     *category,
		Description:  *description,
		Severity:     *severity,
		Latitude:     *lat,
		Longitude:    *lon,
		ReporterID:   *reporter,
		IsQuickAlert: *quick,
	})
	if err != nil {
		return err
	}
	fmt.Println(outcome)
	return nil
}

func runFlush() error {
	m, err := newManager(alwaysOnline{})
	if err != nil {
		return err
	}
	defer m.Close()

	res, err := m.Flush(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("synced=%d failed=%d remaining=%d\n", res.Synced, res.Failed, res.Remaining)
	return nil
}

func runQueue() error {
	m, err := newManager(alwaysOnline{})
	if err != nil {
		return err
	}
	defer m.Close()

	fmt.Println(m.QueueLength())
	return nil
}

func runWatch() error {
	probe := relay.NewProbeSignal(healthURL(), probeInterval())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	probe.Start(ctx)
	defer probe.Stop()

	m, err := newManager(probe)
	if err != nil {
		return err
	}
	defer m.Close()

	log.Infof("Watching connectivity, %d report(s) queued", m.QueueLength())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	return nil
}
