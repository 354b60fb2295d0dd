package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-social-bot/types"
)

func TestGetValueNavigatesNestedPaths(t *testing.T) {
	parser := NewParser(&types.ServiceConfig{
		Name:    "social-bot",
		Version: "1.0.0",
		Social: &types.SocialConfig{
			BaseURL: "https://api.example.com",
		},
	})

	require.Equal(t, "social-bot", parser.GetValue("name", ""))
	require.Equal(t, "1.0.0", parser.GetValue("version", ""))
	require.Equal(t, "https://api.example.com", parser.GetValue("social.base_url", ""))
}

func TestGetValueFallsBackToDefault(t *testing.T) {
	parser := NewParser(&types.ServiceConfig{
		Name:    "social-bot",
		Version: "1.0.0",
	})

	require.Equal(t, 42, parser.GetValue("no.such.path", 42))
	require.Equal(t, "fallback", parser.GetValue("social.base_url.deeper", "fallback"))
}
