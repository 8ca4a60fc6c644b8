package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SecretEnvVars lists the variables normalize reads secrets from, in the
// order they appear in an env template.
var SecretEnvVars = []string{
	"JELLYFIN_URL",
	"JELLYFIN_API_KEY",
	"JELLYFIN_USER_ID",
	"TMDB_API_KEY",
	"SMTP_PASSWORD",
	"NTFY_TOPIC",
	"REDIS_URL",
}

// SampleOptions seeds values into the generated sample configuration.
type SampleOptions struct {
	JellyfinURL string
	Feeds       []string

	// SecretsFromEnv blanks the placeholder secrets so the environment (or a
	// .env file) supplies them.
	SecretsFromEnv bool
}

// placeholderSecrets are the sample lines that hold placeholder credentials.
var placeholderSecrets = []string{
	`api_key = "your_jellyfin_api_key_here"`,
	`user_id = "your_jellyfin_user_id_here"`,
	`api_key = "your_tmdb_api_key_here"`,
}

// RenderSample returns the sample configuration with opts applied.
func RenderSample(opts SampleOptions) string {
	out := sampleConfig
	if u := strings.TrimSpace(opts.JellyfinURL); u != "" {
		out = replaceLine(out, `url = "http://localhost:8096"`, "url = "+strconv.Quote(u))
	}
	var feeds []string
	for _, f := range opts.Feeds {
		if f = strings.TrimSpace(f); f != "" {
			feeds = append(feeds, strconv.Quote(f))
		}
	}
	if len(feeds) > 0 {
		out = replaceLine(out, "urls = []", "urls = ["+strings.Join(feeds, ", ")+"]")
	}
	if opts.SecretsFromEnv {
		for _, line := range placeholderSecrets {
			key, _, _ := strings.Cut(line, " = ")
			out = replaceLine(out, line, key+` = ""`)
		}
	}
	return out
}

func replaceLine(doc, old, replacement string) string {
	return strings.Replace(doc, "\n"+old+"\n", "\n"+replacement+"\n", 1)
}

// EnvTemplate returns a .env body with every secret variable left blank.
func EnvTemplate() string {
	var b strings.Builder
	b.WriteString("# mediawatch secrets; variables already set in the environment win.\n")
	for _, name := range SecretEnvVars {
		b.WriteString(name)
		b.WriteString("=\n")
	}
	return b.String()
}

// CreateSample writes the sample configuration to path.
func CreateSample(path string, opts SampleOptions) error {
	content := RenderSample(opts)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
