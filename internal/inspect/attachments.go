package inspect

import (
	"mime"
	"strings"

	"github.com/mikey/mail-spam-analyzer/internal/core"
)

// executableType stands in for "unknown binary"; no finer typing is attempted
const executableType = "application/octet-stream"

// InspectAttachments flags the presence of attachments and of binary ones
func InspectAttachments(attachments []core.Attachment) core.AttachmentAnalysis {
	result := core.AttachmentAnalysis{HasAttachments: len(attachments) > 0}
	for _, a := range attachments {
		if IsExecutable(a.ContentType) {
			result.AttachmentIsExecutable = true
			break
		}
	}
	return result
}

// IsExecutable reports whether a content type is the generic binary type
func IsExecutable(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return strings.EqualFold(mediaType, executableType)
}
