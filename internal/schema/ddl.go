package schema

import (
	"regexp"
	"strings"
)

var (
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	blankLines   = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)*`)
	createTable  = regexp.MustCompile("(?i)CREATE\\s+TABLE\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?(?:[`\"]?\\w+[`\"]?\\.)?[`\"]?(\\w+)[`\"]?")
)

// SplitDDL cuts a schema dump into one Document per CREATE TABLE statement.
// Block comments are dropped, chunks are separated by blank lines, and chunks
// that do not define a table are ignored. A blank line inside an open
// parenthesised column list does not end the table.
func SplitDDL(dump string) []Document {
	cleaned := blockComment.ReplaceAllString(strings.ReplaceAll(dump, "\r\n", "\n"), "")

	var (
		docs  []Document
		index = map[string]int{}
		open  = -1
		depth int
	)
	for _, chunk := range blankLines.Split(cleaned, -1) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}

		if open >= 0 && depth > 0 {
			docs[open].Content += "\n\n" + chunk
			depth += parenDepth(chunk)
			continue
		}
		open = -1

		match := createTable.FindStringSubmatch(chunk)
		if match == nil {
			continue
		}
		name := match[1]
		if _, dup := index[name]; dup {
			continue
		}
		index[name] = len(docs)
		open = len(docs)
		depth = parenDepth(chunk)
		docs = append(docs, Document{TableName: name, Content: chunk})
	}
	return docs
}

func parenDepth(text string) int {
	return strings.Count(text, "(") - strings.Count(text, ")")
}
