package llm_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tablechat/llm"
)

var _ = Describe("Message validation", func() {

	It("accepts a normal user message", func() {
		m := llm.NewTextMessage(llm.RoleUser, "how many orders shipped last week?")
		Expect(m.Validate()).To(Succeed())
	})

	It("rejects an unknown role", func() {
		m := llm.Message{Role: "tool", Content: "x"}
		Expect(m.Validate()).NotTo(Succeed())
	})

	It("rejects empty content", func() {
		m := llm.NewTextMessage(llm.RoleUser, "")
		Expect(m.Validate()).NotTo(Succeed())
	})

	It("rejects content over the length limit", func() {
		m := llm.NewTextMessage(llm.RoleUser, strings.Repeat("a", llm.MaxContentLength+1))
		err := m.Validate()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("exceeds"))
	})

	It("accepts content exactly at the length limit", func() {
		m := llm.NewTextMessage(llm.RoleUser, strings.Repeat("a", llm.MaxContentLength))
		Expect(m.Validate()).To(Succeed())
	})

	It("rejects embedded script tags regardless of case", func() {
		m := llm.NewTextMessage(llm.RoleUser, "hi <SCRIPT type='a'>alert(1)</SCRIPT> there")
		Expect(m.Validate()).NotTo(Succeed())
	})

	It("rejects null bytes", func() {
		m := llm.NewTextMessage(llm.RoleUser, "hello\x00world")
		Expect(m.Validate()).NotTo(Succeed())
	})

	Describe("ValidateMessages", func() {
		It("rejects an empty batch", func() {
			Expect(llm.ValidateMessages(nil)).NotTo(Succeed())
		})

		It("names the offending message index", func() {
			msgs := []llm.Message{
				llm.NewTextMessage(llm.RoleUser, "fine"),
				llm.NewTextMessage(llm.RoleAssistant, ""),
			}
			err := llm.ValidateMessages(msgs)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("message 1"))
		})
	})
})
