// redact маскирует чувствительные значения перед записью в логи.
package redact

import "strings"

// Email оставляет первые два символа локальной части и домен.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := parts[0], parts[1]
	if len(local) > 2 {
		local = local[:2] + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }

// IP маскирует последний октет IPv4; прочие адреса скрываются целиком.
func IP(s string) string {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return "***"
	}

	return strings.Join(parts[:3], ".") + ".*"
}
