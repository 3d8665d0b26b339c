package config_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tablechat/config"
)

var _ = Describe("Config", func() {

	Describe("model blocks", func() {
		It("parses a model and resolves the api key from a variable", func() {
			hcl := minimalVarsHCL() + minimalModelHCL()
			_, f := writeFixture("config.hcl", hcl)

			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Models).To(HaveLen(1))
			Expect(cfg.Models[0].Name).To(Equal("primary"))
			Expect(cfg.Models[0].Provider).To(Equal(config.ProviderOpenAI))
			Expect(cfg.Models[0].APIKey).To(Equal("test-key-123"))
		})

		It("keeps explicit default and fallback models", func() {
			hcl := minimalVarsHCL() + `
model "primary" {
  provider = "anthropic"
  api_key  = vars.test_api_key
  default  = "claude-3-5-haiku-20241022"
  fallback = "claude-sonnet-4-20250514"
}
`
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Models[0].ResolvedDefault()).To(Equal("claude-3-5-haiku-20241022"))
			Expect(cfg.Models[0].ResolvedFallback()).To(Equal("claude-sonnet-4-20250514"))
		})

		It("supplies provider defaults when default and fallback are unset", func() {
			m := config.Model{Provider: config.ProviderOpenAI}
			Expect(m.ResolvedDefault()).NotTo(BeEmpty())
			Expect(m.ResolvedFallback()).To(Equal("gpt-4o"))
		})

		It("rejects an unsupported provider", func() {
			m := config.Model{Name: "bad", Provider: "llama", APIKey: "k"}
			err := m.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("Unsupported provider"))
		})

		It("rejects a missing api key", func() {
			m := config.Model{Name: "bad", Provider: config.ProviderOpenAI}
			Expect(m.Validate()).NotTo(Succeed())
		})
	})

	Describe("platform blocks", func() {
		It("parses a platform and applies the language default", func() {
			dbPath, schemaPath := writePlatformFiles()
			hcl := minimalVarsHCL() + minimalModelHCL() + fmt.Sprintf(`
platform "sales" {
  database    = %q
  schema_file = %q
}
`, dbPath, schemaPath)
			_, f := writeFixture("config.hcl", hcl)

			cfg, err := config.LoadAndValidate(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Platforms).To(HaveLen(1))
			Expect(cfg.Platforms[0].Language).To(Equal("english"))

			p, ok := cfg.Platform("sales")
			Expect(ok).To(BeTrue())
			Expect(p.Database).To(Equal(dbPath))
		})

		It("rejects a platform whose database file is missing", func() {
			_, schemaPath := writePlatformFiles()
			hcl := minimalVarsHCL() + minimalModelHCL() + fmt.Sprintf(`
platform "sales" {
  database    = "/nonexistent/data.db"
  schema_file = %q
}
`, schemaPath)
			_, f := writeFixture("config.hcl", hcl)

			_, err := config.LoadAndValidate(f)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database file"))
		})

		It("rejects duplicate platform names", func() {
			dbPath, schemaPath := writePlatformFiles()
			block := fmt.Sprintf(`
platform "sales" {
  database    = %q
  schema_file = %q
}
`, dbPath, schemaPath)
			_, f := writeFixture("config.hcl", minimalVarsHCL()+minimalModelHCL()+block+block)

			_, err := config.LoadAndValidate(f)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("duplicate platform name"))
		})
	})

	Describe("storage block", func() {
		It("defaults to the memory backend in strict mode", func() {
			_, f := writeFixture("config.hcl", minimalVarsHCL()+minimalModelHCL())
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Backend).To(Equal("memory"))
			Expect(cfg.Storage.Mode).To(Equal("strict"))
		})

		It("parses a postgres storage block", func() {
			hcl := minimalVarsHCL() + minimalModelHCL() + `
storage {
  backend   = "postgres"
  url       = "postgres://localhost/chat"
  pool_size = 8
  mode      = "best_effort"
}
`
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Backend).To(Equal("postgres"))
			Expect(cfg.Storage.PoolSize).To(Equal(8))
			Expect(cfg.Storage.Mode).To(Equal("best_effort"))
			Expect(cfg.Storage.Validate()).To(Succeed())
		})

		It("requires a url for the postgres backend", func() {
			s := config.StorageConfig{Backend: "postgres", Mode: "strict"}
			Expect(s.Validate()).NotTo(Succeed())
		})

		It("rejects an unknown persistence mode", func() {
			s := config.StorageConfig{Backend: "memory", Mode: "eventually"}
			Expect(s.Validate()).NotTo(Succeed())
		})
	})

	Describe("settings block", func() {
		It("fills defaults when absent", func() {
			_, f := writeFixture("config.hcl", minimalVarsHCL()+minimalModelHCL())
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Settings.MaxRetries).To(Equal(3))
			Expect(cfg.Settings.ExecutionTimeoutSecs).To(Equal(30))
			Expect(cfg.Settings.HighReliability).To(BeFalse())
		})

		It("parses explicit settings", func() {
			hcl := minimalVarsHCL() + minimalModelHCL() + `
settings {
  max_retries      = 5
  high_reliability = true
}
`
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Settings.MaxRetries).To(Equal(5))
			Expect(cfg.Settings.HighReliability).To(BeTrue())
		})
	})

	Describe("loading a directory", func() {
		It("merges blocks across files", func() {
			dbPath, schemaPath := writePlatformFiles()
			dir := writeFixtures(map[string]string{
				"vars.hcl":   minimalVarsHCL(),
				"models.hcl": minimalModelHCL(),
				"platforms.hcl": fmt.Sprintf(`
platform "sales" {
  database    = %q
  schema_file = %q
}
`, dbPath, schemaPath),
			})

			cfg, err := config.LoadAndValidate(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Models).To(HaveLen(1))
			Expect(cfg.Platforms).To(HaveLen(1))
		})
	})

	Describe("Validate", func() {
		It("requires at least one model", func() {
			cfg := &config.Config{}
			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("model block"))
		})

		It("rejects a secret variable with a default", func() {
			v := config.Variable{Name: "key", Default: "x", Secret: true}
			Expect(v.Validate()).NotTo(Succeed())
		})
	})
})
