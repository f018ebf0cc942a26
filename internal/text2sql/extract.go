// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package text2sql

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// GeneratedQuery is a statement produced by the translator. It is not
// checked against the schema before execution.
type GeneratedQuery string

var (
	queryMarker = regexp.MustCompile(`(?i)SQLQuery\s*:`)

	// A query starts at SELECT, or at WITH when it opens a common table
	// expression ("WITH name AS (" / "WITH RECURSIVE name(cols) AS (").
	queryStart = regexp.MustCompile(`(?i)\bSELECT\b|\bWITH\s+(?:RECURSIVE\s+)?"?\w+"?\s*(?:\([^)]*\)\s*)?AS\s*\(`)

	// Anything after one of these belongs to the model's commentary.
	queryEnd = regexp.MustCompile("(?i)SQLQuery\\s*:|SQLResult\\s*:|Answer\\s*:|Question\\s*:|```")

	// Words that may open a continuation line of a statement.
	sqlWords = map[string]bool{
		"SELECT": true, "FROM": true, "WHERE": true, "AND": true, "OR": true,
		"NOT": true, "GROUP": true, "ORDER": true, "BY": true, "HAVING": true,
		"LIMIT": true, "OFFSET": true, "JOIN": true, "LEFT": true, "RIGHT": true,
		"INNER": true, "OUTER": true, "CROSS": true, "FULL": true, "NATURAL": true,
		"ON": true, "USING": true, "AS": true, "UNION": true, "ALL": true,
		"EXCEPT": true, "INTERSECT": true, "WITH": true, "CASE": true, "WHEN": true,
		"THEN": true, "ELSE": true, "END": true, "IN": true, "IS": true,
		"NULL": true, "LIKE": true, "BETWEEN": true, "DISTINCT": true, "ASC": true,
		"DESC": true, "EXISTS": true, "COUNT": true, "AVG": true, "SUM": true,
		"MIN": true, "MAX": true, "CAST": true, "COALESCE": true, "IFNULL": true,
		"ROUND": true, "ABS": true, "LOWER": true, "UPPER": true, "LENGTH": true,
		"SUBSTR": true, "REPLACE": true, "TRIM": true,
	}
)

// ExtractQuery pulls one executable statement out of raw model output.
//
// Grammar, applied in order:
//  1. If an "SQLQuery:" marker is present, only text after it is considered.
//  2. The candidate starts at the first query-start token (SELECT, or WITH
//     opening a CTE) and runs to the next SQLQuery:/SQLResult:/Answer:/
//     Question: marker or code fence. It also stops before a blank line or
//     a line that reads as prose rather than SQL, and is cut after the first
//     top-level ';'.
//  3. With no query-start token anywhere, the whole trimmed output is
//     returned unchanged as a best-effort query.
func ExtractQuery(raw string) GeneratedQuery {
	text := raw
	if loc := queryMarker.FindStringIndex(text); loc != nil {
		text = text[loc[1]:]
	}

	start := queryStart.FindStringIndex(text)
	if start == nil {
		// Fall back to the unmarked output in case the marker itself was
		// followed by prose and the statement came before it.
		if start = queryStart.FindStringIndex(raw); start == nil {
			return GeneratedQuery(strings.TrimSpace(raw))
		}
		text = raw
	}
	text = text[start[0]:]

	if end := queryEnd.FindStringIndex(text); end != nil {
		text = text[:end[0]]
	}
	text = cutAtProse(text)
	text = cutAfterTerminator(text)

	return GeneratedQuery(strings.TrimSpace(text))
}

// cutAtProse truncates s before the first blank line, or the first line
// after the opening one that does not read as SQL. Lines that begin inside
// a quoted literal are always kept.
func cutAtProse(s string) string {
	var quote rune
	offset := 0
	for i, line := range strings.SplitAfter(s, "\n") {
		if quote == 0 && i > 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || !sqlLine(trimmed) {
				return s[:offset]
			}
		}
		for _, r := range line {
			switch {
			case quote != 0:
				if r == quote {
					quote = 0
				}
			case r == '\'' || r == '"' || r == '`':
				quote = r
			}
		}
		offset += len(line)
	}
	return s
}

// sqlLine reports whether a trimmed, non-empty line can continue a
// statement. Lines opening with punctuation, digits or quotes qualify, as do
// SQL keywords and lower-case identifiers. A leading word in another script
// or a capitalised English word marks prose.
func sqlLine(line string) bool {
	first, _ := utf8.DecodeRuneInString(line)
	if !unicode.IsLetter(first) && first != '_' {
		return true
	}
	end := strings.IndexFunc(line, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	word := line
	if end >= 0 {
		word = line[:end]
	}
	if sqlWords[strings.ToUpper(word)] {
		return true
	}
	for _, r := range word {
		if r >= utf8.RuneSelf {
			return false
		}
	}
	return !(unicode.IsUpper(first) && strings.ToUpper(word) != word)
}

// cutAfterTerminator truncates s after the first ';' that is not inside a
// quoted string or identifier.
func cutAfterTerminator(s string) string {
	var quote rune
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == ';':
			return s[:i+1]
		}
	}
	return s
}
