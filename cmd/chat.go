package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"tablechat/agent"
	"tablechat/checkpoint"
	"tablechat/config"
	"tablechat/llm"
	"tablechat/streamers/cli"
)

var configPath string
var sessionID string
var noStream bool
var showQuestions bool

var chatCmd = &cobra.Command{
	Use:   "chat [platform]",
	Short: "Chat with a dataset",
	Long:  `Start an interactive chat session against the specified platform's data.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		platform := args[0]
		ctx := context.Background()

		cfg, err := config.LoadAndValidate(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		logger := hclog.New(&hclog.LoggerOptions{
			Name:   "tablechat",
			Level:  hclog.Warn,
			Output: os.Stderr,
		})

		saver, err := checkpoint.NewSaver(ctx, cfg.Storage, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening checkpoint store: %v\n", err)
			os.Exit(1)
		}

		registry, err := agent.NewRegistry(ctx, cfg, saver, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer registry.Close()

		a, err := registry.Get(platform)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		streamer := cli.NewChatHandler()

		model := ""
		if m, ok := cfg.Model(cfg.Models[0].Name); ok {
			model = m.ResolvedDefault()
		}
		streamer.Welcome(platform, model)

		if showQuestions {
			if questions, err := a.SuggestQuestions(ctx, 3); err == nil {
				streamer.SuggestedQuestions(questions)
			}
		}

		history, err := a.GetChatHistory(ctx, sessionID)
		if err != nil {
			streamer.Error(err)
			history = nil
		}

		for {
			input, err := streamer.AwaitClientAnswer()
			if err != nil {
				if err == io.EOF {
					streamer.Goodbye()
					break
				}
				streamer.Error(err)
				break
			}

			if input == "" {
				continue
			}

			if input == "exit" || input == "quit" {
				streamer.Goodbye()
				break
			}

			if input == "clear" {
				if err := a.ClearChatHistory(ctx, sessionID); err != nil {
					streamer.Error(err)
					continue
				}
				history = nil
				fmt.Println("History cleared.")
				continue
			}

			msgs := append(history, llm.NewTextMessage(llm.RoleUser, input))
			streamer.Thinking()

			if noStream {
				resp, err := a.GetResponse(ctx, msgs, sessionID)
				if err != nil {
					streamer.Error(err)
					continue
				}
				if len(resp.Messages) > 0 {
					streamer.PublishAnswerChunk(resp.Messages[len(resp.Messages)-1].Content)
				}
				streamer.FinishAnswer()
				streamer.ShowChart(resp.Fig)
				history = resp.Messages
				continue
			}

			events, err := a.GetStreamResponse(ctx, msgs, sessionID)
			if err != nil {
				streamer.Error(err)
				continue
			}
			for ev := range events {
				if ev.Done {
					if ev.Err != nil {
						streamer.Error(ev.Err)
					}
					break
				}
				streamer.PublishAnswerChunk(ev.Content)
			}
			streamer.FinishAnswer()

			if h, err := a.GetChatHistory(ctx, sessionID); err == nil && len(h) > 0 {
				history = h
			} else {
				history = msgs
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&configPath, "config", "c", ".", "Path to config file or directory")
	chatCmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id to resume (default: new session)")
	chatCmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the full answer instead of streaming")
	chatCmd.Flags().BoolVarP(&showQuestions, "questions", "q", false, "Show suggested questions on startup")
}
