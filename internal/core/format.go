package core

import (
	"fmt"
	"path/filepath"
	"strings"

	"gwi.com/paper-assistant/internal/store"
)

const headerSeparator = "；"

// IsChinese reports whether text contains a CJK unified ideograph.
func IsChinese(text string) bool {
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FFF {
			return true
		}
	}
	return false
}

// FormatContext renders retrieved chunks as numbered, citable blocks in retriever
// order. Blank chunks are dropped before numbering.
func FormatContext(hits []store.ScoredChunk, chinese bool) string {
	blocks := make([]string, 0, len(hits))
	seq := 0
	for _, h := range hits {
		content := strings.TrimSpace(h.Chunk.Content)
		if content == "" {
			continue
		}
		seq++
		blocks = append(blocks, CitationTag(seq, h.Chunk.Page, chinese)+" "+content)
	}
	return strings.Join(blocks, "\n\n")
}

// CitationTag is "[{seq}页,{page}]" or "[{seq}pag,{page}]" with a 1-based page,
// without the page part when it is unknown.
func CitationTag(seq int, page *int, chinese bool) string {
	marker := "pag"
	if chinese {
		marker = "页"
	}
	if page == nil {
		return fmt.Sprintf("[%d%s]", seq, marker)
	}
	return fmt.Sprintf("[%d%s,%d]", seq, marker, *page+1)
}

// BuildSourceHeader names the paper(s) an answer draws on. A selected paper wins;
// otherwise the distinct sources of the hits are listed in first-seen order.
func BuildSourceHeader(hits []store.ScoredChunk, chinese bool, selected *store.Paper) string {
	unknown := "unknown"
	if chinese {
		unknown = "未知"
	}

	if selected != nil {
		title := firstNonEmpty(selected.Title, selected.FileName, unknown)
		file := firstNonEmpty(selected.FileName, selected.FileID, unknown)
		path := firstNonEmpty(selected.Path, unknown)
		return renderHeader(title, file, path, chinese)
	}

	var names, files, paths []string
	for _, h := range hits {
		c := h.Chunk
		name := c.SourceName
		if name == "" && c.SourcePath != "" {
			name = filepath.Base(c.SourcePath)
		}
		names = appendUnique(names, name)
		files = appendUnique(files, firstNonEmpty(c.SourceURL, c.SourceFile, name))
		paths = appendUnique(paths, c.SourcePath)
	}
	return renderHeader(joinOr(names, unknown), joinOr(files, unknown), joinOr(paths, unknown), chinese)
}

func renderHeader(title, file, path string, chinese bool) string {
	if chinese {
		return fmt.Sprintf("正在询问的论文名称：%s，PDF文件：%s，路径：%s\n\n", title, file, path)
	}
	return fmt.Sprintf("Paper in focus: %s, PDF: %s, Path: %s\n\n", title, file, path)
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func joinOr(list []string, fallback string) string {
	if len(list) == 0 {
		return fallback
	}
	return strings.Join(list, headerSeparator)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
