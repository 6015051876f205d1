package config

// DefaultCatalog returns the built-in trigger catalog.
//
// Triggers are intentionally substring-based and conservative to avoid
// false escalation; this is a known precision/recall ceiling, not
// something to replace with a smarter classifier, since routing
// behavior is observable downstream. The scoring constants (0.8/0.4
// bases, 0.1 per trigger, 0.2 cap) are historical and not calibrated;
// do not tune them without new evidence.
func DefaultCatalog() *Catalog {
	c := &Catalog{
		// Critical covers real incidents, outages, and breaches only.
		// Generic urgency words are deliberately excluded.
		Critical: []string{
			"incident",
			"outage",
			"breach",
			"attack",
			"compromised",
			"production down",
			"data loss",
			"leak",
			"incident response",
		},
		Domains: map[string]DomainTriggers{
			"security": {
				Triggers: []string{
					"security", "auth", "token", "secret", "vuln",
					"vulnerability", "password", "credential", "injection",
					"xss", "csrf", "encrypt", "permission", "access control",
					"oauth", "jwt", "cve",
				},
				Strong: []string{
					"vulnerability", "injection", "xss", "csrf", "oauth",
					"jwt", "credential", "cve",
				},
				Weak: []string{
					"security", "auth", "token", "secret", "password",
					"access control",
				},
			},
			"architect": {
				Triggers: []string{
					"architecture", "migration", "database", "db", "scale",
					"scaling", "performance", "perf", "refactor",
					"design pattern", "microservice", "infrastructure",
					"deploy", "ci/cd", "load balancer", "docker", "nginx",
					"kubernetes", "k8s",
				},
				Strong: []string{
					"architecture", "microservice", "migration",
					"infrastructure", "ci/cd", "kubernetes", "docker",
				},
				Weak: []string{
					"database", "db", "scale", "performance", "perf",
					"refactor", "deploy", "nginx",
				},
			},
			"qa": {
				Triggers: []string{
					"test", "qa", "regression", "coverage", "bug",
					"edge case", "unit test", "integration test", "e2e",
					"mock", "fixture",
				},
				Strong: []string{
					"regression", "coverage", "integration test",
					"unit test", "e2e",
				},
				Weak: []string{"test", "qa", "bug", "mock"},
			},
			"seo": {
				Triggers: []string{
					"seo", "search engine", "meta tag", "sitemap",
					"robots.txt", "canonical", "structured data",
					"schema.org", "lighthouse",
				},
				Strong: []string{
					"sitemap", "robots.txt", "schema.org", "canonical",
					"lighthouse",
				},
				Weak: []string{"seo", "meta tag"},
			},
			"ux": {
				Triggers: []string{
					"ux", "ui", "user experience", "accessibility", "a11y",
					"wcag", "usability", "responsive", "mobile",
					"design system",
				},
				Strong: []string{
					"accessibility", "a11y", "wcag", "design system",
					"user experience",
				},
				Weak: []string{"ux", "ui", "mobile", "responsive"},
			},
		},
	}
	return c
}
