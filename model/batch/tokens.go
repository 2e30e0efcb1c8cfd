package batch

import (
	"fmt"
	"strings"

	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes, starting at 1 to stay clear of parsly's reserved codes
const (
	whitespaceCode = iota + 1
	doubleQuotedCode
	singleQuotedCode
	wordCode
)

var (
	whitespaceToken   = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	doubleQuotedToken = parsly.NewToken(doubleQuotedCode, "DoubleQuoted", &quotedMatcher{quote: '"', escapes: true})
	singleQuotedToken = parsly.NewToken(singleQuotedCode, "SingleQuoted", &quotedMatcher{quote: '\''})
	wordToken         = parsly.NewToken(wordCode, "Word", &wordMatcher{})
)

// quotedMatcher matches a quoted section including both quotes
type quotedMatcher struct {
	quote   byte
	escapes bool
}

func (m *quotedMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	if pos >= size || input[pos] != m.quote {
		return 0
	}
	for i := pos + 1; i < size; i++ {
		switch input[i] {
		case '\\':
			if m.escapes {
				i++
			}
		case m.quote:
			return i - pos + 1
		}
	}
	return 0 // unterminated
}

// wordMatcher matches unquoted text up to whitespace or a quote
type wordMatcher struct{}

func (m *wordMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	matched := 0
	for i := pos; i < size; i++ {
		c := input[i]
		if isSpace(c) || c == '"' || c == '\'' {
			break
		}
		if c == '\\' && i+1 < size {
			i++
			matched++
		}
		matched++
	}
	return matched
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// Tokenize splits an argument string the way a POSIX shell would split words:
// whitespace separates arguments, single quotes group literally, double quotes
// group with backslash escapes, and adjacent sections form one argument.
func Tokenize(text string) ([]string, error) {
	cursor := parsly.NewCursor("", []byte(text), 0)
	var result []string
	var current strings.Builder
	inWord := false
	flush := func() {
		if inWord {
			result = append(result, current.String())
			current.Reset()
			inWord = false
		}
	}
	for cursor.HasMore() {
		matched := cursor.MatchAny(whitespaceToken, doubleQuotedToken, singleQuotedToken, wordToken)
		switch matched.Code {
		case whitespaceCode:
			flush()
		case doubleQuotedCode:
			value := matched.Text(cursor)
			current.WriteString(unescape(value[1 : len(value)-1]))
			inWord = true
		case singleQuotedCode:
			value := matched.Text(cursor)
			current.WriteString(value[1 : len(value)-1])
			inWord = true
		case wordCode:
			current.WriteString(unescape(matched.Text(cursor)))
			inWord = true
		default:
			return nil, fmt.Errorf("failed to tokenize %q at position %d: unterminated quote", text, cursor.Pos)
		}
	}
	flush()
	return result, nil
}

func unescape(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] == '\\' && i+1 < len(value) {
			i++
		}
		b.WriteByte(value[i])
	}
	return b.String()
}

// Join is the inverse of Tokenize: it quotes tokens holding whitespace or quotes
func Join(tokens []string) string {
	quoted := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if token != "" && !strings.ContainsAny(token, " \t\n\r\v\f\"'\\") {
			quoted = append(quoted, token)
			continue
		}
		var b strings.Builder
		b.WriteByte('"')
		for i := 0; i < len(token); i++ {
			if token[i] == '"' || token[i] == '\\' {
				b.WriteByte('\\')
			}
			b.WriteByte(token[i])
		}
		b.WriteByte('"')
		quoted = append(quoted, b.String())
	}
	return strings.Join(quoted, " ")
}
