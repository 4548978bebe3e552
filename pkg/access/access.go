package access

import (
	"fmt"
	"strings"

	"fundwave/pkg/config"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("access", fx.Provide(NewEnforcer))

const defaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// defaultPolicy lets admins reach every admin route.
var defaultPolicy = [][]string{
	{"admin", "/api/admin/*", "*"},
}

// NewEnforcer builds an in-memory enforcer. ACCESS_CONTROL.MODEL overrides
// the model text; ACCESS_CONTROL.POLICY adds "p, sub, obj, act" lines.
func NewEnforcer(cfg *config.Config) (*casbin.Enforcer, error) {
	text := defaultModel
	if cfg.AccessControl.Model != "" {
		text = cfg.AccessControl.Model
	}

	m, err := model.NewModelFromString(text)
	if err != nil {
		return nil, fmt.Errorf("access: load model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("access: new enforcer: %w", err)
	}

	policies := append([][]string{}, defaultPolicy...)
	policies = append(policies, parsePolicy(cfg.AccessControl.Policy)...)
	for _, p := range policies {
		if _, err := e.AddPolicy(p); err != nil {
			return nil, fmt.Errorf("access: add policy %v: %w", p, err)
		}
	}

	zap.L().Info("access control loaded", zap.Int("policies", len(policies)))
	return e, nil
}

func parsePolicy(raw string) [][]string {
	var out [][]string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 4 || strings.TrimSpace(fields[0]) != "p" {
			zap.L().Warn("ignoring malformed policy line", zap.String("line", line))
			continue
		}
		out = append(out, []string{
			strings.TrimSpace(fields[1]),
			strings.TrimSpace(fields[2]),
			strings.TrimSpace(fields[3]),
		})
	}
	return out
}
