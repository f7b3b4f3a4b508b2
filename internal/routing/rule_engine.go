package routing

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"shard-federator/internal/common/errors"
)

// Rule sends statements matching Statement (and Condition, when set) to Shards.
type Rule struct {
	// Statement is an exact name, a namespace pattern like "user.*", or "*".
	Statement string `yaml:"statement" validate:"required"`
	// Condition is an optional expr-lang boolean over the argument.
	Condition string `yaml:"condition"`
	// Shards are the identities a match contributes.
	Shards []string `yaml:"shards" validate:"required,min=1,dive,required"`
}

type compiledRule struct {
	rule    Rule
	program *vm.Program
}

// RuleRouter evaluates rules in order; all matching rules contribute shards.
type RuleRouter struct {
	rules []compiledRule
}

// NewRuleRouter compiles rules. Bad patterns or conditions are config errors.
func NewRuleRouter(rules []Rule) (*RuleRouter, error) {
	compiled := make([]compiledRule, 0, len(rules))

	for i, rule := range rules {
		if err := validatePattern(rule.Statement); err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("rule %d: %v", i, err))
		}
		if len(rule.Shards) == 0 {
			return nil, errors.ConfigError(fmt.Sprintf("rule %d (%s) has no shards", i, rule.Statement))
		}

		cr := compiledRule{rule: rule}
		if strings.TrimSpace(rule.Condition) != "" {
			program, err := expr.Compile(rule.Condition, conditionOptions()...)
			if err != nil {
				return nil, errors.ConfigError(
					fmt.Sprintf("rule %d (%s): invalid condition: %v", i, rule.Statement, err))
			}
			cr.program = program
		}
		compiled = append(compiled, cr)
	}

	return &RuleRouter{rules: compiled}, nil
}

func conditionOptions() []expr.Option {
	return []expr.Option{
		expr.DisableBuiltin("panic"),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	}
}

func validatePattern(pattern string) error {
	switch {
	case pattern == "":
		return fmt.Errorf("statement pattern is empty")
	case pattern == "*":
		return nil
	case strings.Contains(strings.TrimSuffix(pattern, ".*"), "*"):
		return fmt.Errorf("statement pattern %q may only end in .*", pattern)
	}
	return nil
}

func matchStatement(pattern, statement string) bool {
	if pattern == "*" {
		return true
	}
	if ns, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(statement, ns+".")
	}
	return pattern == statement
}

// Route implements Router
func (r *RuleRouter) Route(fact Fact) (Result, error) {
	if err := fact.Validate(); err != nil {
		return Result{}, err
	}

	var shards []string
	var env map[string]interface{}

	for _, cr := range r.rules {
		if !matchStatement(cr.rule.Statement, fact.Statement) {
			continue
		}

		if cr.program != nil {
			if env == nil {
				env = conditionEnv(fact)
			}
			out, err := expr.Run(cr.program, env)
			if err != nil {
				return Result{}, errors.RoutingError(
					fmt.Sprintf("condition %q failed for %s", cr.rule.Condition, fact.Statement), err)
			}
			if matched, _ := out.(bool); !matched {
				continue
			}
		}

		shards = append(shards, cr.rule.Shards...)
	}

	return NewResult(shards...), nil
}

// Map arguments expose their keys at the top level next to arg and statement.
func conditionEnv(fact Fact) map[string]interface{} {
	env := map[string]interface{}{}

	switch m := fact.Argument.(type) {
	case map[string]interface{}:
		for k, v := range m {
			env[k] = v
		}
	case map[string]string:
		for k, v := range m {
			env[k] = v
		}
	}

	env["arg"] = fact.Argument
	env["statement"] = fact.Statement
	env["namespace"] = fact.Namespace()
	return env
}

// Len returns the number of compiled rules
func (r *RuleRouter) Len() int {
	return len(r.rules)
}
