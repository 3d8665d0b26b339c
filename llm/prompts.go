package llm

import "fmt"

// Prompt templates for the three completion operations plus the auxiliary
// question-suggestion and history-summarization calls. The generation prompt
// pins down the exact output contract that ParseQueryProgram expects.

const codeGenerationTemplate = `You are a helpful AI data analyst, expert in SQLite. Given below is the schema of a database. Your task is to produce a valid SQLite query that answers the question from the user for the given database.

%s

Instructions:
- Output exactly one fenced code block marked ` + "```sql" + ` containing a single read-only SQLite SELECT query.
- Do not include any text or explanations outside code blocks.
- IMPORTANT: Only produce a chart when the user explicitly asks for a visualization or plot. In that case add a second fenced code block marked ` + "```chart" + ` containing a JSON object with the keys "type" (one of "bar", "line", "pie", "scatter"), "x", "y" and "title", naming columns returned by the SQL query.
- The user cannot modify your query or provide feedback beyond running it, so never produce incomplete queries.
- If the question cannot be answered from the database (for example required tables or columns do not exist), respond with exactly: Required information is not available in the given database.
- Think step by step.

Generate the query to answer the following question from the user.`

const reflectionTemplate = `You are a helpful AI SQL programmer, expert in SQLite.
Your task is to analyze the error in the query and provide a corrected query.

Here is the error message:
%s

Here is the query that caused the error:
%s

Please fix the error and return the corrected query.
Suggestions:
- Keep the output contract: one fenced sql code block with a single read-only SELECT query.
- If the error states that the query produced no result set, check that the statement is a SELECT and not a write.
- Verify every table and column name against the schema before using it.`

const formatResponseTemplate = `You are a helpful and insightful data assistant.

Given:
- A user's question
- The SQL query used to answer it
- The raw result of the query

Your task is to generate a clear, concise summary that explains the result in plain language.
Focus on key trends, patterns, statistics, or anomalies that directly address the user's question. Avoid technical jargon or SQL terms.

Then, list 1 or 2 follow-up analysis suggestions as bullet points. These should help the user explore deeper insights and must be answerable from the same database schema.

User Question:
%s
SQL Query:
%s
Query Result:
%s

Your response should be in %s.

Summary:`

const suggestQuestionsTemplate = `Generate exactly %d insightful questions about the %s platform data.
The dataset schema is:
%s

Requirements:
1. Questions should be specific to the %s platform data
2. Each question should reveal important business insights
3. Every question should be in %s
4. Do not include code in the questions
5. Format each question on a new line without numbering
6. Questions should cover different aspects of the data (trends, patterns, comparisons)
7. Make questions specific enough to be answerable with the available data
8. EACH QUESTION MUST BE A SINGLE-PART QUESTION WITHOUT ANY ADDITIONAL SUB-QUESTIONS`

const summarizeHistoryTemplate = `Summarize the following conversation history for future reference:
%s`

// CodeGenerationPrompt builds the schema-aware system prompt for query generation.
func CodeGenerationPrompt(schema string) string {
	return fmt.Sprintf(codeGenerationTemplate, schema)
}

// ReflectionPrompt builds the prompt asking the model to diagnose a failed query.
func ReflectionPrompt(errText, code string) string {
	return fmt.Sprintf(reflectionTemplate, errText, code)
}

// FormatResponsePrompt builds the prompt turning a raw result into prose.
func FormatResponsePrompt(question, code, result, language string) string {
	return fmt.Sprintf(formatResponseTemplate, question, code, result, language)
}

// SuggestQuestionsPrompt builds the prompt for sample question generation.
func SuggestQuestionsPrompt(n int, platform, schema, language string) string {
	return fmt.Sprintf(suggestQuestionsTemplate, n, platform, schema, platform, language)
}

// SummarizeHistoryPrompt builds the prompt for compacting old conversation turns.
func SummarizeHistoryPrompt(history string) string {
	return fmt.Sprintf(summarizeHistoryTemplate, history)
}
