package graph_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tablechat/checkpoint"
	"tablechat/executor"
	"tablechat/graph"
	"tablechat/llm"
)

const (
	goodSQL      = "```sql\nSELECT username FROM users ORDER BY username\n```"
	badSQL       = "```sql\nSELECT usrname FROM users\n```"
	reflection   = "The column is called username, not usrname."
	finalAnswer  = "There are two users: ada and grace."
	testSession  = "sess-1"
	testSchema   = "CREATE TABLE users (id INTEGER, username TEXT)"
)

var _ = Describe("Graph", func() {
	var (
		ctx   context.Context
		saver *checkpoint.MemorySaver
	)

	BeforeEach(func() {
		ctx = context.Background()
		saver = checkpoint.NewMemorySaver()
	})

	build := func(provider *scriptedProvider, opts graph.Options) *graph.Graph {
		client := llm.NewClient(provider, nil, llm.ClientOptions{Model: "m1", MaxRetries: 3})
		exec := executor.New(openDataset(), 5*time.Second, nil)
		return graph.New(client, exec, saver, testSchema, nil, opts)
	}

	ask := func(question string) *graph.State {
		return graph.NewState([]llm.Message{llm.NewTextMessage(llm.RoleUser, question)}, testSession)
	}

	Describe("a clean turn", func() {
		It("generates, executes and formats in one iteration", func() {
			provider := &scriptedProvider{script: []string{goodSQL, finalAnswer}}
			g := build(provider, graph.Options{})

			state, err := g.Invoke(ctx, ask("who are the users?"))
			Expect(err).NotTo(HaveOccurred())

			Expect(state.Iterations).To(Equal(1))
			Expect(state.Error).To(BeEmpty())
			Expect(state.Messages).To(HaveLen(2))
			Expect(state.Messages[1].Role).To(Equal(llm.RoleAssistant))
			Expect(state.Messages[1].Content).To(Equal(finalAnswer))
			Expect(state.Result).NotTo(BeNil())
			Expect(state.Result.Rows).To(HaveLen(2))
			Expect(provider.calls).To(Equal(2))
		})

		It("checkpoints the final state", func() {
			provider := &scriptedProvider{script: []string{goodSQL, finalAnswer}}
			g := build(provider, graph.Options{})

			_, err := g.Invoke(ctx, ask("who are the users?"))
			Expect(err).NotTo(HaveOccurred())

			loaded, err := saver.Load(ctx, testSession)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).NotTo(BeNil())
			Expect(loaded.Messages).To(HaveLen(2))
			Expect(loaded.Messages[1].Content).To(Equal(finalAnswer))
		})

		It("captures the chart spec into state", func() {
			provider := &scriptedProvider{script: []string{
				goodSQL + "\n```chart\n{\"type\":\"bar\"}\n```",
				finalAnswer,
			}}
			g := build(provider, graph.Options{})

			state, err := g.Invoke(ctx, ask("chart the users"))
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Fig).To(MatchJSON(`{"type":"bar"}`))
		})
	})

	Describe("the reflection loop", func() {
		It("records the failure, reflects and retries", func() {
			provider := &scriptedProvider{script: []string{badSQL, reflection, goodSQL, finalAnswer}}
			g := build(provider, graph.Options{})

			state, err := g.Invoke(ctx, ask("who are the users?"))
			Expect(err).NotTo(HaveOccurred())

			Expect(state.Iterations).To(Equal(2))
			Expect(state.Error).To(BeEmpty())

			Expect(state.Messages).To(HaveLen(4))
			Expect(state.Messages[1].Content).To(HavePrefix("Error executing code: "))
			Expect(state.Messages[1].Content).To(ContainSubstring("usrname"))
			Expect(state.Messages[2].Content).To(Equal("Reflection on the error: " + reflection))
			Expect(state.Messages[3].Content).To(Equal(finalAnswer))
		})

		It("stops at the iteration budget without formatting", func() {
			provider := &scriptedProvider{script: []string{badSQL, reflection, badSQL}}
			g := build(provider, graph.Options{MaxRetries: 2})

			state, err := g.Invoke(ctx, ask("who are the users?"))
			Expect(err).NotTo(HaveOccurred())

			Expect(state.Iterations).To(Equal(2))
			Expect(state.Error).NotTo(BeEmpty())
			Expect(provider.calls).To(Equal(3))

			var errorMessages int
			for _, m := range state.Messages {
				if strings.HasPrefix(m.Content, "Error executing code: ") {
					errorMessages++
				}
			}
			Expect(errorMessages).To(Equal(2))
		})
	})

	Describe("the no-data sentinel", func() {
		It("ends immediately with the fixed not-available answer", func() {
			provider := &scriptedProvider{script: []string{llm.NoDataSentinel}}
			g := build(provider, graph.Options{})

			state, err := g.Invoke(ctx, ask("what is the weather?"))
			Expect(err).NotTo(HaveOccurred())

			Expect(state.Iterations).To(Equal(1))
			Expect(state.Error).To(Equal(llm.NoDataSentinel))
			Expect(provider.calls).To(Equal(1))

			Expect(state.Messages).To(HaveLen(2))
			last := state.Messages[len(state.Messages)-1]
			Expect(last.Role).To(Equal(llm.RoleAssistant))
			Expect(last.Content).To(Equal(llm.NoDataMessage))
		})

		It("bypasses the iteration budget entirely", func() {
			provider := &scriptedProvider{script: []string{llm.NoDataSentinel}}
			g := build(provider, graph.Options{MaxRetries: 1})

			state, err := g.Invoke(ctx, ask("what is the weather?"))
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Error).To(Equal(llm.NoDataSentinel))
			Expect(provider.calls).To(Equal(1))
		})
	})

	Describe("streaming", func() {
		It("forwards generation and formatting tokens to the sink", func() {
			provider := &scriptedProvider{script: []string{goodSQL, finalAnswer}}
			g := build(provider, graph.Options{})

			var streamed strings.Builder
			state, err := g.InvokeStream(ctx, ask("who are the users?"), func(token string) {
				streamed.WriteString(token)
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Messages[1].Content).To(Equal(finalAnswer))
			Expect(streamed.String()).To(ContainSubstring("SELECT username"))
			Expect(streamed.String()).To(ContainSubstring(finalAnswer))
		})
	})

	Describe("cancellation", func() {
		It("stops the run at the next node boundary", func() {
			provider := &scriptedProvider{script: []string{goodSQL, finalAnswer}}
			g := build(provider, graph.Options{})

			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := g.Invoke(cancelled, ask("who are the users?"))
			Expect(err).To(MatchError(context.Canceled))
		})
	})
})
