package executor_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tablechat/executor"
	"tablechat/llm"
)

var _ = Describe("Execute", func() {
	var (
		ctx  context.Context
		exec *executor.Executor
	)

	BeforeEach(func() {
		ctx = context.Background()
		exec = executor.New(openTestDB(), 5*time.Second, nil)
	})

	It("captures columns and rows for a successful query", func() {
		out := exec.Execute(ctx, &llm.QueryProgram{
			SQL: "SELECT region, SUM(total) AS total FROM orders GROUP BY region ORDER BY region",
		})
		Expect(out.ErrText).To(BeEmpty())
		Expect(out.Result).NotTo(BeNil())
		Expect(out.Result.Columns).To(Equal([]string{"region", "total"}))
		Expect(out.Result.Rows).To(HaveLen(2))
		Expect(out.Result.Rows[0][0]).To(Equal("east"))
	})

	It("carries the chart spec through on success", func() {
		out := exec.Execute(ctx, &llm.QueryProgram{
			SQL:   "SELECT region FROM orders",
			Chart: `{"type":"bar"}`,
		})
		Expect(out.ErrText).To(BeEmpty())
		Expect(out.Fig).To(Equal(`{"type":"bar"}`))
	})

	It("drops the chart spec when the query fails", func() {
		out := exec.Execute(ctx, &llm.QueryProgram{
			SQL:   "SELECT nope FROM orders",
			Chart: `{"type":"bar"}`,
		})
		Expect(out.ErrText).NotTo(BeEmpty())
		Expect(out.Fig).To(BeEmpty())
	})

	It("classifies a runtime error instead of failing", func() {
		out := exec.Execute(ctx, &llm.QueryProgram{SQL: "SELECT missing_col FROM orders"})
		Expect(out.ErrText).To(ContainSubstring("missing_col"))
		Expect(out.Result).To(BeNil())
	})

	It("rejects a write statement", func() {
		out := exec.Execute(ctx, &llm.QueryProgram{SQL: "DELETE FROM orders"})
		Expect(out.ErrText).To(Equal("only read-only SELECT queries are permitted"))
	})

	It("allows a WITH clause", func() {
		out := exec.Execute(ctx, &llm.QueryProgram{
			SQL: "WITH t AS (SELECT total FROM orders) SELECT COUNT(*) AS n FROM t",
		})
		Expect(out.ErrText).To(BeEmpty())
		Expect(out.Result.Rows[0][0]).To(BeEquivalentTo(3))
	})

	It("short-circuits the no-data sentinel without touching the database", func() {
		out := exec.Execute(ctx, &llm.QueryProgram{NoData: true})
		Expect(out.NoData).To(BeTrue())
		Expect(out.ErrText).To(Equal(llm.NoDataSentinel))
		Expect(out.Result).To(BeNil())
	})

	It("truncates very large result sets", func() {
		db := openTestDB()
		for i := 0; i < 600; i++ {
			_, err := db.Exec(fmt.Sprintf("INSERT INTO orders (region, total) VALUES ('r%d', %d)", i, i))
			Expect(err).NotTo(HaveOccurred())
		}
		exec := executor.New(db, 5*time.Second, nil)

		out := exec.Execute(ctx, &llm.QueryProgram{SQL: "SELECT id FROM orders"})
		Expect(out.ErrText).To(BeEmpty())
		Expect(out.Result.Rows).To(HaveLen(500))
		Expect(out.Result.Truncated).To(BeTrue())
	})
})

var _ = Describe("Table rendering", func() {
	It("renders as JSON", func() {
		t := &executor.Table{Columns: []string{"a"}, Rows: [][]any{{int64(1)}}}
		Expect(t.Render()).To(MatchJSON(`{"columns":["a"],"rows":[[1]]}`))
	})
})
