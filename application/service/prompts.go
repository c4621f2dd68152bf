package service

import (
	"fmt"
	"strings"
)

const (
	generatorSystem = "You are an expert PostgreSQL developer who turns ticket requests into a single read-only query."
	reviewerSystem  = "You are an SQL expert for PostgreSQL who reviews queries for correctness and safety."
	reviserSystem   = "You are an expert SQL assistant in PostgreSQL who updates queries from user feedback."
	assessorSystem  = "You evaluate data requests for whether they can be answered with SQL against a known schema."
)

const generatorRules = `INSTRUCTIONS:
- Carefully review the ticket and work out what it requires from the database.
- The query MUST be a single valid PostgreSQL SELECT or WITH statement.
- Capture all constraints mentioned in the ticket (filters, groupings, breakdowns, date ranges, categories, limits).
- Do NOT invent categories, tables or columns.
- Do NOT include any columns the ticket does not ask for.

FILTER RULES:
- Only apply a filter if the ticket explicitly mentions it.
- Do NOT infer filters from column names or example values alone.
- For numeric and date columns, only filter if the ticket specifies a range.
- Ignore columns that are not relevant to the ticket.

JOIN RULES:
- Join tables only when the schema justifies it.
- Only include columns required by the ticket.

OUTPUT RULES:
- Include exactly the columns requested.
- Return all rows unless the ticket specifies a limit.
- Never write INSERT, UPDATE, DELETE, DROP, ALTER, CREATE, EXEC or GRANT.`

const reviewerRules = `Your task is to:
1. Fix any syntax errors for PostgreSQL.
2. Ensure the query is correct, efficient and read-only (no DROP, DELETE, UPDATE or other modifying statements).
3. Make sure it will run successfully in PostgreSQL.
4. Only convert subqueries into CTEs if that meaningfully improves readability.
5. Otherwise keep the query structure as simple as possible.
Explain any changes in notes; use an empty string when nothing changed.`

const reviserRules = `Rules:
- Only generate SELECT or WITH queries.
- Do NOT DROP, DELETE, UPDATE, INSERT, ALTER or CREATE.
- Keep all previously requested columns, filters and groupings unless the feedback says otherwise.

Task:
Update the SQL query to reflect the feedback and chat history. Explain what was changed and why in notes.`

const assessorRules = `Decide whether the ticket can be answered by a read-only SQL query over the schema above.
- feasible: true only when the schema holds the data the ticket asks for.
- confidence: a number between 0 and 1.
- complexity: simple, moderate or complex.
- required_tables: the tables a query would read, using names from the schema.
- missing_information: details the ticket must add before a query can be written; empty when none.`

func section(title, body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	return title + ":\n" + body + "\n\n"
}

func fenced(sql string) string {
	return "```sql\n" + strings.TrimSpace(sql) + "\n```"
}

func generatorPrompt(ticketText, compactContext, fullSchema string) string {
	var b strings.Builder
	b.WriteString(section("Ticket", ticketText))
	b.WriteString(section("Schema Context (primary column guide)", compactContext))
	if strings.TrimSpace(fullSchema) != "" {
		b.WriteString(section("Full schema (never use a column that is not listed here)", fullSchema))
	}
	b.WriteString(generatorRules)
	return b.String()
}

func reviewerPrompt(sql string) string {
	return fmt.Sprintf("%s\n\nSQL query to review:\n%s", reviewerRules, fenced(sql))
}

func reviserPrompt(ticketText, currentSQL, history, compactContext string) string {
	var b strings.Builder
	b.WriteString(section("Ticket", ticketText))
	b.WriteString(section("Current SQL", fenced(currentSQL)))
	b.WriteString(section("Feedback and chat history", history))
	b.WriteString(section("Database schema context", compactContext))
	b.WriteString(reviserRules)
	return b.String()
}

func assessorPrompt(ticketText, schemaSummary string) string {
	if strings.TrimSpace(schemaSummary) == "" {
		schemaSummary = "(schema unavailable)"
	}
	var b strings.Builder
	b.WriteString(section("Ticket", ticketText))
	b.WriteString(section("Schema", schemaSummary))
	b.WriteString(assessorRules)
	return b.String()
}
