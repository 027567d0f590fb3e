package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/docuhub/backend-go/internal/config"
	"github.com/docuhub/backend-go/internal/database"
	"github.com/docuhub/backend-go/internal/di"
	apperrors "github.com/docuhub/backend-go/internal/errors"
	"github.com/docuhub/backend-go/internal/logger"
	"github.com/docuhub/backend-go/internal/services"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if _, err := di.InitContainer(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}

	var err error
	if err = di.Invoke(func(cfg *config.Config) error {
		return logger.InitLogger(cfg.App.LogLevel, cfg.App.Development)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	defer func() {
		_ = database.CloseDB()
		_ = database.CloseRedis()
	}()

	switch args[0] {
	case "ingest":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: docqa ingest <files...>")
			os.Exit(2)
		}
		err = di.Invoke(func(svc *services.IngestionService) error {
			return runIngest(svc, args[1:])
		})
	case "chat":
		err = di.Invoke(func(qa *services.QAService, sessions *services.SessionService) error {
			return runChat(qa, sessions)
		})
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: docqa [-config path] <command>")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  ingest <files...>   index documents for question answering")
	fmt.Fprintln(os.Stderr, "  chat                interactive question answering session")
}

// runIngest 批量入库本地文件
func runIngest(svc *services.IngestionService, paths []string) error {
	uploads := make([]services.Upload, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		uploads = append(uploads, services.Upload{
			Filename: filepath.Base(path),
			Data:     data,
		})
	}

	results := svc.IngestBatch(context.Background(), uploads)
	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
			fmt.Printf("FAILED    %s: %s\n", result.Filename, apperrors.UserMessage(result.Err))
			continue
		}
		fmt.Printf("INDEXED   %s (%s, %d chunks)\n", result.Filename, result.DocumentID, result.ChunkCount)
	}
	if failed > 0 {
		fmt.Printf("%d of %d documents failed\n", failed, len(results))
	}
	return nil
}

// runChat 交互式问答循环
func runChat(qa *services.QAService, sessions *services.SessionService) error {
	sessionID := uuid.NewString()
	fmt.Println("Ask questions about your documents. Commands: /clear resets history, /quit exits.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		switch question {
		case "/quit", "/exit":
			sessions.EndSession(context.Background(), sessionID)
			return nil
		case "/clear":
			sessions.ClearHistory(context.Background(), sessionID)
			fmt.Println("History cleared.")
			continue
		}

		answer, err := qa.Ask(context.Background(), sessionID, question, services.AskOptions{})
		if err != nil {
			fmt.Println(apperrors.UserMessage(err))
			continue
		}

		fmt.Println(answer.Text)
		if len(answer.Cited) > 0 {
			fmt.Println("sources:")
			for _, chunk := range answer.Cited {
				fmt.Printf("  - document %s, chunk %d [%d:%d)\n",
					chunk.DocumentID, chunk.Index, chunk.Start, chunk.End)
			}
		}
	}
	return scanner.Err()
}
