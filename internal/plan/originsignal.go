package plan

import "strings"

// untrustedSignals are substrings typical of content lifted from an
// external, unreviewed source (a web page, an email body) rather than typed
// directly by the user: destructive shell patterns and bare URLs. A match
// downgrades a plan's content origin to untrusted.
var untrustedSignals = []string{
	"rm -rf", "drop table", "sudo", "curl | sh", "curl|sh", "wget | sh",
	"http://", "https://", "&&", "; rm ", "`", "$(",
}

// classifyOrigin reports the content origin for query and, if it was
// downgraded, which signal triggered the downgrade (for the audit trail).
func classifyOrigin(query string) (ContentOrigin, string) {
	lower := strings.ToLower(query)
	for _, sig := range untrustedSignals {
		if strings.Contains(lower, sig) {
			return OriginUntrusted, sig
		}
	}
	return OriginUser, ""
}
