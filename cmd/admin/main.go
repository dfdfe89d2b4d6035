package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"whisperchat/backend/internal/config"
	"whisperchat/backend/internal/models"
	"whisperchat/backend/internal/storage"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

const usage = `Usage: admin [-config file] <command> [args]

Commands:
  history <user> [limit]   show recorded private messages of a user
  tail                     follow audit records published on Redis
  purge <age>              delete records older than age (e.g. 720h)`

func main() {
	configPath := flag.String("config", os.Getenv("WHISPER_CONFIG_FILE"), "path to the YAML config file")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "history":
		if len(args) < 2 {
			fmt.Println("Usage: admin history <user> [limit]")
			os.Exit(1)
		}
		limit := storage.DefaultHistoryLimit
		if len(args) > 2 {
			if limit, err = strconv.Atoi(args[2]); err != nil || limit <= 0 {
				fmt.Println("Invalid limit. Please provide a positive integer.")
				os.Exit(1)
			}
		}
		s := openDatabase(cfg)
		records, err := s.ListAuditRecords(ctx, storage.AuditFilter{User: args[1], Limit: limit})
		if err != nil {
			log.Fatalf("Error loading history: %v", err)
		}
		printHistory(os.Stdout, records)

	case "tail":
		s := openRedis(ctx, cfg)
		if err := tail(ctx, s); err != nil {
			log.Fatalf("Error following audit channel: %v", err)
		}

	case "purge":
		if len(args) != 2 {
			fmt.Println("Usage: admin purge <age>")
			os.Exit(1)
		}
		age, err := time.ParseDuration(args[1])
		if err != nil || age <= 0 {
			fmt.Println("Invalid age. Please provide a duration such as 720h.")
			os.Exit(1)
		}
		s := openDatabase(cfg)
		n, err := s.DeleteAuditRecordsBefore(ctx, time.Now().Add(-age))
		if err != nil {
			log.Fatalf("Error purging records: %v", err)
		}
		fmt.Printf("Deleted %d audit records.\n", n)

	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) *storage.Service {
	if cfg.Database.DSN == "" {
		log.Fatal("database.dsn is not configured")
	}
	db, err := storage.OpenDatabase(cfg.Database.DSN, nil)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	return storage.NewStorageService(db, nil)
}

func openRedis(ctx context.Context, cfg *config.Config) *storage.Service {
	if cfg.Redis.Addr == "" {
		log.Fatal("redis.addr is not configured")
	}
	rdb, err := storage.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	return storage.NewStorageService(nil, rdb)
}

func printHistory(w io.Writer, records []models.AuditRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No audit records found.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Sent", "Kind", "Sender", "Receiver", "Message"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, rec := range records {
		table.Append([]string{
			rec.SentAt.Local().Format(time.DateTime),
			rec.Kind,
			rec.SenderName,
			rec.Receiver(),
			rec.Content,
		})
	}
	table.Render()
}

func tail(ctx context.Context, s *storage.Service) error {
	sub := s.SubscribeAudit(ctx)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	fmt.Printf("Following %s, press Ctrl+C to stop.\n", storage.AuditChannel)

	sender := color.New(color.FgCyan)
	target := color.New(color.FgGreen)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			rec, err := storage.DecodeAuditRecord(msg.Payload)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping malformed record: %v\n", err)
				continue
			}
			fmt.Fprintf(color.Output, "%s [%s] %s sent %s: %s\n",
				rec.SentAt.Local().Format(time.TimeOnly),
				rec.Kind,
				sender.Sprint(rec.SenderName),
				target.Sprint(rec.Receiver()),
				rec.Content,
			)
		}
	}
}
