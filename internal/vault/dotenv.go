package vault

import (
	"sort"
	"strings"
)

// ParseDotenv reads dotenv-style content into a variable set.
//
// Parsing is deliberately forgiving: blank lines, comment lines starting
// with '#', and lines without an '=' are skipped. Everything before the
// first '=' is the key, everything after is the value, both trimmed of
// surrounding whitespace. Escaped sequences written by FormatDotenv
// ("\n" and "\\") are decoded so an exported file imports losslessly.
func ParseDotenv(content []byte) Variables {
	vars := Variables{}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		if key == "" {
			continue
		}
		vars[key] = unescapeValue(value)
	}
	return vars
}

// FormatDotenv renders a variable set as dotenv content with keys in
// sorted order. Newlines and backslashes in values are escaped so every
// variable stays on one line.
func FormatDotenv(vars Variables) string {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(escapeValue(vars[key]))
		sb.WriteString("\n")
	}
	return sb.String()
}

func escapeValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, "\n", `\n`)
	return value
}

func unescapeValue(value string) string {
	var sb strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] == '\\' && i+1 < len(value) {
			switch value[i+1] {
			case 'n':
				sb.WriteByte('\n')
				i++
				continue
			case '\\':
				sb.WriteByte('\\')
				i++
				continue
			}
		}
		sb.WriteByte(value[i])
	}
	return sb.String()
}
