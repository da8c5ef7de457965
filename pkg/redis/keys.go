package redis

import "strings"

const keyNamespace = "menu"

// Every key lives under "menu:" so the storefront can share a redis with
// other services.
func (c *Client) IdempotencyKey(scope, id string) string { return key("idempotency", scope, id) }

func (c *Client) RateLimitKey(scope string) string { return key("rate_limit", scope) }

// AccessSessionKey maps an access token id (jti) to its refresh session.
func (c *Client) AccessSessionKey(accessID string) string { return key("session", "access", accessID) }

func (c *Client) CartKey(cartID string) string { return key("cart", cartID) }

// SubmitGuardKey is the in-flight order submission lock for a cart.
func (c *Client) SubmitGuardKey(cartID string) string { return key("submit", cartID) }

// OrdersChannel carries change notifications for one tenant's orders.
func (c *Client) OrdersChannel(tenantID string) string { return key("orders", tenantID) }

func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
