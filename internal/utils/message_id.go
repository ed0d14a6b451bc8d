package utils

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// GenerateMessageID creates an RFC 5322 Message-ID for an outgoing email
func GenerateMessageID(domain, metadata string) string {
	id := GenerateNanoID(12)
	timestamp := time.Now().UnixMicro()

	var hashComponent string
	if metadata != "" {
		hash := sha256.Sum256([]byte(metadata))
		hashComponent = fmt.Sprintf(".%x", hash[:4])
	}

	localPart := fmt.Sprintf("%d.%s%s", timestamp, id, hashComponent)
	return fmt.Sprintf("<%s@%s>", localPart, domain)
}
