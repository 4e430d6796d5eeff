// Package replies holds the user-facing reply templates. Defaults are built
// in; a replies.yaml file can override any of them per deployment.
package replies

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultPath = "replies.yaml"

var defaults = map[string]string{
	"login_link":         "Abra para conectar ao Jira (uma vez): %s",
	"login_required":     "Você precisa conectar sua conta Jira: %s",
	"refresh_failed":     "⚠️ Não consegui renovar sua sessão Jira: %s",
	"list_header":        "Suas tarefas:\n%s",
	"list_item":          "• %s — %s [%s]",
	"list_empty":         "Nenhuma.",
	"list_failed":        "Falha ao listar: %s",
	"worklog_ok":         "✅ %vh lançadas em %s (worklogId %s).",
	"worklog_failed":     "⚠️ Erro ao lançar: %s",
	"transitions":        "Transitions de %s: %s\nUse: mover %s ID_DA_TRANSITION",
	"transitions_empty":  "Nenhuma.",
	"transitions_failed": "Erro ao listar transitions: %s",
	"move_ok":            "✅ %s movida (transition %s).",
	"move_failed":        "Erro ao mover: %s",
	"help":               "Comandos: login | minhas demandas | lançar 1h na PORTAL-XXXX 2025-11-07 14:00 | status PORTAL-XXXX | mover PORTAL-XXXX 31",
}

var overrides map[string]string

// Load reads template overrides from a yaml file. An empty path falls back
// to the REPLIES_FILE env var, then "replies.yaml". A missing file at the
// default path is not an error; the built-in defaults stay active.
func Load(path string) error {
	explicit := path != "" || os.Getenv("REPLIES_FILE") != ""
	if path == "" {
		path = os.Getenv("REPLIES_FILE")
	}
	if path == "" {
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read replies file %s: %w", path, err)
	}

	parsed := make(map[string]string)
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse replies file: %w", err)
	}

	overrides = parsed
	return nil
}

// Get returns the template for key, preferring a loaded override.
func Get(key string) string {
	if v, ok := overrides[key]; ok {
		return v
	}
	return defaults[key]
}

// MustGet is Get but panics on an unknown key; template keys are fixed at
// compile time, so a miss is a programming error.
func MustGet(key string) string {
	val := Get(key)
	if val == "" {
		panic(fmt.Sprintf("reply template %q not found", key))
	}
	return val
}
