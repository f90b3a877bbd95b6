package retrieval

import (
	"fmt"
	"strings"

	"doc-qa-api/internal/domain/entity"
)

const maxSnippetRunes = 200

// BuildGroundingPrompt 构造带引用约束的问答提示词。
// 上下文按检索顺序编号（相同分块只出现一次），并要求模型仅依据上下文作答。
func BuildGroundingPrompt(question string, chunks []entity.ScoredChunk) string {
	var b strings.Builder
	b.WriteString("You are a question answering assistant. Answer the question using ONLY the context below.\n")
	b.WriteString("If the context does not contain the answer, say you do not know. Cite sources as [1], [2] ... after each claim.\n\n")
	b.WriteString("Context:\n")

	seen := make(map[string]struct{}, len(chunks))
	idx := 0
	for _, sc := range chunks {
		if _, ok := seen[sc.Chunk.ID]; ok {
			continue
		}
		seen[sc.Chunk.ID] = struct{}{}
		idx++
		fmt.Fprintf(&b, "[%d] (%s) %s\n", idx, sc.Chunk.Metadata.Filename, compactOneLine(sc.Chunk.Text))
	}
	if idx == 0 {
		b.WriteString("(no relevant context found)\n")
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\nAnswer:")
	return b.String()
}

// compactOneLine 折叠空白为单行
func compactOneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes 截断到 max 个 rune，超出部分以省略号结尾
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
