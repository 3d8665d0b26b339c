package llm_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tablechat/llm"
)

// timeoutError satisfies net.Error, which the client treats as transient.
type timeoutError struct{}

func (timeoutError) Error() string   { return "connection reset" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

const goodCompletion = "```sql\nSELECT 1\n```"

var _ = Describe("Client", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	userMsg := func() []llm.Message {
		return []llm.Message{llm.NewTextMessage(llm.RoleUser, "how many?")}
	}

	Describe("GenerateCode", func() {
		It("returns the parsed program on first success", func() {
			provider := &fakeProvider{script: []fakeCompletion{{content: goodCompletion}}}
			client := llm.NewClient(provider, nil, llm.ClientOptions{Model: "m1", MaxRetries: 3})

			prog, err := client.GenerateCode(ctx, userMsg())
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.SQL).To(Equal("SELECT 1"))
			Expect(provider.calls).To(Equal(1))
		})

		It("retries a transient provider failure", func() {
			provider := &fakeProvider{script: []fakeCompletion{
				{err: timeoutError{}},
				{content: goodCompletion},
			}}
			client := llm.NewClient(provider, nil, llm.ClientOptions{Model: "m1", MaxRetries: 3})

			prog, err := client.GenerateCode(ctx, userMsg())
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.SQL).To(Equal("SELECT 1"))
			Expect(provider.calls).To(Equal(2))
		})

		It("retries an unparseable completion", func() {
			provider := &fakeProvider{script: []fakeCompletion{
				{content: "you could try the users table"},
				{content: goodCompletion},
			}}
			client := llm.NewClient(provider, nil, llm.ClientOptions{Model: "m1", MaxRetries: 3})

			prog, err := client.GenerateCode(ctx, userMsg())
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.SQL).To(Equal("SELECT 1"))
			Expect(provider.calls).To(Equal(2))
		})

		It("fails immediately on a non-transient error", func() {
			provider := &fakeProvider{script: []fakeCompletion{
				{err: errors.New("invalid api key")},
				{content: goodCompletion},
			}}
			client := llm.NewClient(provider, nil, llm.ClientOptions{Model: "m1", MaxRetries: 3})

			_, err := client.GenerateCode(ctx, userMsg())
			Expect(err).To(HaveOccurred())
			Expect(provider.calls).To(Equal(1))
			Expect(errors.Is(err, llm.ErrRetriesExhausted)).To(BeFalse())
		})

		It("returns ErrRetriesExhausted after the full budget", func() {
			provider := &fakeProvider{script: []fakeCompletion{{err: timeoutError{}}}}
			client := llm.NewClient(provider, nil, llm.ClientOptions{Model: "m1", MaxRetries: 3})

			_, err := client.GenerateCode(ctx, userMsg())
			Expect(errors.Is(err, llm.ErrRetriesExhausted)).To(BeTrue())
			Expect(provider.calls).To(Equal(3))
		})

		It("swaps to the fallback model on the penultimate attempt in high-reliability mode", func() {
			provider := &fakeProvider{script: []fakeCompletion{
				{err: timeoutError{}},
				{err: timeoutError{}},
				{content: goodCompletion},
			}}
			client := llm.NewClient(provider, nil, llm.ClientOptions{
				Model:           "m1",
				FallbackModel:   "m2",
				MaxRetries:      3,
				HighReliability: true,
			})

			prog, err := client.GenerateCode(ctx, userMsg())
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.SQL).To(Equal("SELECT 1"))
			Expect(provider.models).To(Equal([]string{"m1", "m1", "m2"}))
			Expect(client.Model()).To(Equal("m2"))
		})

		It("never swaps models when high reliability is off", func() {
			provider := &fakeProvider{script: []fakeCompletion{{err: timeoutError{}}}}
			client := llm.NewClient(provider, nil, llm.ClientOptions{
				Model:         "m1",
				FallbackModel: "m2",
				MaxRetries:    3,
			})

			_, err := client.GenerateCode(ctx, userMsg())
			Expect(err).To(HaveOccurred())
			Expect(provider.models).To(Equal([]string{"m1", "m1", "m1"}))
			Expect(client.Model()).To(Equal("m1"))
		})
	})

	Describe("GenerateCodeStream", func() {
		It("forwards tokens and parses the accumulated completion", func() {
			provider := &fakeProvider{script: []fakeCompletion{{content: goodCompletion}}}
			client := llm.NewClient(provider, nil, llm.ClientOptions{Model: "m1", MaxRetries: 1})

			var streamed strings.Builder
			prog, err := client.GenerateCodeStream(ctx, userMsg(), func(token string) {
				streamed.WriteString(token)
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.SQL).To(Equal("SELECT 1"))
			Expect(streamed.String()).To(Equal(goodCompletion))
		})
	})

	Describe("Reflect", func() {
		It("returns the trimmed reflection text", func() {
			provider := &fakeProvider{script: []fakeCompletion{{content: "  The column is misspelled.\n"}}}
			client := llm.NewClient(provider, nil, llm.ClientOptions{Model: "m1", MaxRetries: 1})

			out, err := client.Reflect(ctx, "no such column: usrname", "SELECT usrname FROM users")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("The column is misspelled."))
		})
	})

	Describe("SuggestQuestions", func() {
		It("splits the completion into one question per line", func() {
			provider := &fakeProvider{script: []fakeCompletion{
				{content: "What was revenue last month?\n\nWhich region grew fastest?\n"},
			}}
			client := llm.NewClient(provider, nil, llm.ClientOptions{Model: "m1", MaxRetries: 1})

			questions, err := client.SuggestQuestions(ctx, 2, "sales", "CREATE TABLE sales (...)", "english")
			Expect(err).NotTo(HaveOccurred())
			Expect(questions).To(Equal([]string{
				"What was revenue last month?",
				"Which region grew fastest?",
			}))
		})
	})

	Describe("PrepareMessages", func() {
		It("passes short histories through with the system prompt first", func() {
			provider := &fakeProvider{script: []fakeCompletion{{content: "unused"}}}
			client := llm.NewClient(provider, nil, llm.ClientOptions{Model: "m1", MaxRetries: 1})

			history := []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")}
			msgs := client.PrepareMessages(ctx, "SYSTEM", history, 12, 6)
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Role).To(Equal(llm.RoleSystem))
			Expect(msgs[0].Content).To(Equal("SYSTEM"))
			Expect(provider.calls).To(BeZero())
		})

		It("summarizes older turns when the history exceeds the window", func() {
			provider := &fakeProvider{script: []fakeCompletion{{content: "they discussed revenue"}}}
			client := llm.NewClient(provider, nil, llm.ClientOptions{Model: "m1", MaxRetries: 1})

			var history []llm.Message
			for i := 0; i < 10; i++ {
				history = append(history, llm.NewTextMessage(llm.RoleUser, "question"))
			}
			msgs := client.PrepareMessages(ctx, "SYSTEM", history, 4, 2)
			Expect(provider.calls).To(Equal(1))
			Expect(msgs).To(HaveLen(3))
			Expect(msgs[0].Content).To(ContainSubstring("Here is a summary of previous conversation: they discussed revenue"))
		})

		It("falls back to the full history when summarization fails", func() {
			provider := &fakeProvider{script: []fakeCompletion{{err: errors.New("boom")}}}
			client := llm.NewClient(provider, nil, llm.ClientOptions{Model: "m1", MaxRetries: 1})

			var history []llm.Message
			for i := 0; i < 10; i++ {
				history = append(history, llm.NewTextMessage(llm.RoleUser, "question"))
			}
			msgs := client.PrepareMessages(ctx, "SYSTEM", history, 4, 2)
			Expect(msgs).To(HaveLen(11))
		})
	})
})
