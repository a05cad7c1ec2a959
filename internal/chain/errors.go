package chain

import "strings"

// FriendlyError shortens the node errors operators hit most often.
func FriendlyError(s string) string {
	ls := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(ls, "insufficient funds"):
		return "insufficient funds for gas"
	case strings.Contains(ls, "nonce too low"):
		return "nonce too low"
	case strings.Contains(ls, "replacement transaction underpriced"), strings.Contains(ls, "already known"):
		return "transaction with this nonce already pending"
	case strings.Contains(ls, "invalid character '<'"):
		return "non-JSON/HTML response (proxy/cf?)"
	case strings.Contains(ls, "dial tcp"), strings.Contains(ls, "lookup "):
		return "network/DNS error"
	case strings.Contains(ls, "too many requests"), strings.Contains(ls, "-32005"):
		return "rate limited by provider"
	}
	return s
}
