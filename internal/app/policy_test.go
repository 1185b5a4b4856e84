package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-market/atelier/internal/rbac"
)

func TestLoadPolicyDefaults(t *testing.T) {
	policy, err := LoadPolicy(&Config{})
	require.NoError(t, err)
	assert.Equal(t, rbac.DefaultRouteTable(), policy.Routes())
}

func TestLoadPolicyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	rules := "routes:\n  - path: /lookbook\n    permissions: [browse_products]\n"
	require.NoError(t, os.WriteFile(path, []byte(rules), 0o600))

	policy, err := LoadPolicy(&Config{RouteRulesFile: path})
	require.NoError(t, err)
	rule, ok := policy.MatchRoute("/lookbook/spring")
	require.True(t, ok)
	assert.Equal(t, "/lookbook", rule.Path)
	_, ok = policy.MatchRoute("/admin")
	assert.False(t, ok)
}

func TestLoadPolicyMissingFile(t *testing.T) {
	_, err := LoadPolicy(&Config{RouteRulesFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorContains(t, err, "route rules")
}
