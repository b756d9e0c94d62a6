package summaries

import "fmt"

// Demo reasons surfaced in placeholder summaries.
const (
	demoUnreadable    = "The text of this document could not be extracted automatically."
	demoNotConfigured = "AI summarization is not configured on this server."
)

// DemoSummary is the clearly labeled placeholder returned instead of an error.
func DemoSummary(fileName, reason string) string {
	return fmt.Sprintf(`**Document Summary for %s** (demo mode)

%s This placeholder was generated without AI analysis and does not describe the document's actual content.

**What you can do:**
- Upload a text-based PDF rather than a scanned image
- Make sure the file is not password protected
- Try again later if the AI service is being configured

Your usage allowance was not charged for this request.`, fileName, reason)
}
