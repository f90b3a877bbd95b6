package retrieval

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// sentenceRe 按终止标点切句，兼容中英文标点；
// 末尾没有终止标点的片段作为最后一句保留。
var sentenceRe = regexp.MustCompile(`[^.!?。！？]+[.!?。！？]+["'”’]?|[^.!?。！？]+$`)

// splitSentences 将原文切分为句子序列，保留原始顺序
func splitSentences(text string) []string {
	matches := sentenceRe.FindAllString(text, -1)
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		s := strings.TrimSpace(m)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// chunkBySentences 按句子边界聚合成块：块长不超过 chunkSize（rune 数），
// 相邻块以前一块的尾部句子作为重叠前缀，重叠长度不超过 overlap。
// 单句超过 chunkSize 时对该句退化为按 rune 硬切分。
func chunkBySentences(sentences []string, chunkSize, overlap int) []string {
	var chunks []string
	var cur []string
	curLen := 0
	fresh := 0 // 自上次输出以来新加入的句子数

	emit := func() {
		chunks = append(chunks, strings.Join(cur, " "))
		cur, curLen = overlapTail(cur, overlap)
		fresh = 0
	}

	for _, s := range sentences {
		n := utf8.RuneCountInString(s)
		if n > chunkSize {
			if fresh > 0 {
				emit()
			}
			chunks = append(chunks, splitByRunes(s, chunkSize, overlap)...)
			cur, curLen, fresh = nil, 0, 0
			continue
		}
		if curLen+n > chunkSize {
			if fresh > 0 {
				emit()
			}
			// 重叠前缀加上当前句仍超限时丢弃前缀
			if curLen+n > chunkSize {
				cur, curLen = nil, 0
			}
		}
		cur = append(cur, s)
		curLen += n
		fresh++
	}
	if fresh > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}
	return chunks
}

// overlapTail 取尾部若干整句作为下一块的重叠前缀，总长不超过 overlap
func overlapTail(sentences []string, overlap int) ([]string, int) {
	var tail []string
	total := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(sentences[i])
		if total+n > overlap {
			break
		}
		tail = append([]string{sentences[i]}, tail...)
		total += n
	}
	return tail, total
}

// splitByRunes 按 rune 数硬切分超长文本，相邻片段重叠 overlap 个 rune
func splitByRunes(s string, size, overlap int) []string {
	runes := []rune(s)
	if len(runes) <= size {
		return []string{s}
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// windowAround 取第 i 句两侧各 w 句拼成窗口文本，边界处自然截断
func windowAround(sentences []string, i, w int) string {
	lo := i - w
	if lo < 0 {
		lo = 0
	}
	hi := i + w + 1
	if hi > len(sentences) {
		hi = len(sentences)
	}
	return strings.Join(sentences[lo:hi], " ")
}
