package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const snippetMaxLen = 160

func UniqueEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	unique := make([]string, 0, len(emails))

	for _, email := range emails {
		if _, exists := seen[email]; !exists {
			seen[email] = struct{}{}
			unique = append(unique, email)
		}
	}

	return unique
}

func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return messageID
}

func ExtractDomainFromEmail(email string) string {
	if email == "" {
		return ""
	}

	email = strings.TrimSpace(email)

	// Handle potential angle brackets in email (e.g., "Name <email@domain.com>")
	if strings.Contains(email, "<") && strings.Contains(email, ">") {
		startIdx := strings.LastIndex(email, "<") + 1
		endIdx := strings.LastIndex(email, ">")
		if startIdx > 0 && endIdx > startIdx {
			email = email[startIdx:endIdx]
		}
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(parts[1]))
}

// Snippet builds a short plain-text preview from a message body. HTML bodies
// are stripped of markup, script and style content first.
func Snippet(bodyText, bodyHTML string) string {
	text := strings.TrimSpace(bodyText)
	if text == "" && bodyHTML != "" {
		text = htmlToText(bodyHTML)
	}

	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > snippetMaxLen {
		text = string(runes[:snippetMaxLen]) + "…"
	}
	return text
}

func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script,style,head").Remove()
	return strings.TrimSpace(doc.Text())
}
