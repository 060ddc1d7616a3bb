// dispatch runs one send batch from the command line: a recipients file
// plus a YAML session file, credentials from the environment.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sendora/sendora/internal/config"
	"github.com/sendora/sendora/internal/dispatcher"
	"github.com/sendora/sendora/internal/loader"
	"github.com/sendora/sendora/internal/logger"
	"github.com/sendora/sendora/internal/models"
	"github.com/sendora/sendora/internal/pipeline"
	"github.com/sendora/sendora/internal/renderer"
	"github.com/sendora/sendora/internal/templates"
	"github.com/sendora/sendora/internal/transport"
)

// sessionFile is the YAML description of one batch.
type sessionFile struct {
	Certificate    models.CertificateConfig `yaml:"certificate"`
	Message        models.MessageTemplate   `yaml:"message"`
	AttachmentName string                   `yaml:"attachment_name"`
}

func main() {
	recipientsPath := flag.String("recipients", "", "path to the CSV or XLSX recipients file")
	sessionPath := flag.String("session", "", "path to the YAML session file (certificate + message)")
	sheet := flag.String("sheet", "", "worksheet name for XLSX files")
	flag.Parse()

	if *recipientsPath == "" || *sessionPath == "" {
		fmt.Println("usage: dispatch -recipients attendees.xlsx -session session.yaml")
		fmt.Println("credentials are read from SMTP_HOST, SMTP_PORT, SMTP_EMAIL, SMTP_PASSWORD")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("error: load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Printf("error: init logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()

	creds := models.SMTPCredentials{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     envInt("SMTP_PORT", 587),
		Email:    os.Getenv("SMTP_EMAIL"),
		Password: os.Getenv("SMTP_PASSWORD"),
	}
	if creds.Host == "" || creds.Email == "" || creds.Password == "" {
		fmt.Println("error: missing required environment variables")
		fmt.Println("please set: SMTP_HOST, SMTP_EMAIL, SMTP_PASSWORD")
		os.Exit(1)
	}

	recipientsData, err := os.ReadFile(*recipientsPath)
	if err != nil {
		fmt.Printf("error: read recipients: %v\n", err)
		os.Exit(1)
	}

	table, err := loader.Parse(recipientsData, loader.Options{Filename: *recipientsPath, Sheet: *sheet})
	if err != nil {
		fmt.Printf("error: parse recipients: %v\n", err)
		os.Exit(1)
	}

	sessionData, err := os.ReadFile(*sessionPath)
	if err != nil {
		fmt.Printf("error: read session: %v\n", err)
		os.Exit(1)
	}

	var sf sessionFile
	if err := yaml.Unmarshal(sessionData, &sf); err != nil {
		fmt.Printf("error: parse session: %v\n", err)
		os.Exit(1)
	}

	catalog, err := templates.Load(cfg.TemplatesDir)
	if err != nil {
		fmt.Printf("error: load templates: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\ncancelling, queued recipients will be skipped...")
		cancel()
	}()

	limiter := dispatcher.NewRateLimiter(cfg.SendRatePerSec, cfg.SendBurst)
	tracker := dispatcher.NewTracker(nil, nil, log)
	disp := dispatcher.NewService(dispatcher.Options{
		Concurrency: cfg.SendConcurrency,
		MaxRetries:  cfg.MaxRetries,
		RetryBase:   time.Duration(cfg.RetryBaseMS) * time.Millisecond,
	}, limiter, tracker, log)

	transports := func(c models.SMTPCredentials) transport.Transport {
		return transport.NewSMTP(c)
	}
	pipe := pipeline.NewService(catalog, renderer.New(catalog), disp, transports, log)

	session := &pipeline.BatchSession{
		ID:             uuid.New(),
		Table:          table,
		Certificate:    sf.Certificate,
		Message:        sf.Message,
		Credentials:    creds,
		AttachmentName: sf.AttachmentName,
	}

	fmt.Printf("dispatching %d recipients...\n\n", len(table.Rows))

	ledger, err := pipe.Run(ctx, session)
	if err != nil {
		fmt.Printf("error: batch aborted: %v\n", err)
		os.Exit(1)
	}

	printSummary(ledger)

	stats := ledger.Stats()
	if stats.Failed > 0 || stats.Cancelled > 0 {
		os.Exit(1)
	}
}

func printSummary(ledger *dispatcher.Ledger) {
	for _, res := range ledger.Snapshot() {
		switch res.Status {
		case models.TaskStatusSent:
			fmt.Printf("  row %-4d %-40s SENT (%d attempt(s))\n", res.RowIndex, res.Recipient, res.Attempts)
		case models.TaskStatusCancelled:
			fmt.Printf("  row %-4d %-40s CANCELLED\n", res.RowIndex, res.Recipient)
		default:
			fmt.Printf("  row %-4d %-40s %s [%s] %s\n", res.RowIndex, res.Recipient, res.Status, res.ErrorKind, res.Error)
		}
	}

	stats := ledger.Stats()
	fmt.Printf("\ntotal %d: %d sent, %d failed, %d cancelled\n",
		stats.Total, stats.Sent, stats.Failed, stats.Cancelled)
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return def
}
