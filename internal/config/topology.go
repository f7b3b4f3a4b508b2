package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"

	"shard-federator/internal/common/errors"
	"shard-federator/internal/routing"
)

// ShardSpec describes one shard in the topology file
type ShardSpec struct {
	Identity string `yaml:"identity" validate:"required"`
	Driver   string `yaml:"driver" validate:"required,oneof=sqlite3 pgx postgres"`
	DSN      string `yaml:"dsn" validate:"required"`
	PoolSize int    `yaml:"pool_size" validate:"gte=0"`
}

// PartitionSpec hash-partitions statements matching Statement across Shards
// by the value of Field in the statement argument.
type PartitionSpec struct {
	Statement string   `yaml:"statement" validate:"required"`
	Field     string   `yaml:"field" validate:"required"`
	Shards    []string `yaml:"shards" validate:"required,min=1,dive,required"`
}

// Topology is the parsed shards file.
//
//	default: s1
//	shards:
//	  - identity: s1
//	    driver: sqlite3
//	    dsn: ./data/s1.db
//	rules:
//	  - statement: user.*
//	    shards: [s1, s2]
//	partitions:
//	  - statement: order.*
//	    field: customer_id
//	    shards: [s1, s2]
//	statements:
//	  user.byId: SELECT * FROM users WHERE id = :id
type Topology struct {
	Default    string            `yaml:"default"`
	Shards     []ShardSpec       `yaml:"shards" validate:"required,min=1,dive"`
	Rules      []routing.Rule    `yaml:"rules" validate:"dive"`
	Partitions []PartitionSpec   `yaml:"partitions" validate:"dive"`
	Statements map[string]string `yaml:"statements" validate:"required,min=1"`
}

// LoadTopology reads and validates the topology file at path
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("cannot read shards file %s: %v", path, err))
	}
	return ParseTopology(data)
}

// ParseTopology decodes and validates a topology document
func ParseTopology(data []byte) (*Topology, error) {
	var topo Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid shards file: %v", err))
	}
	if err := topo.Validate(); err != nil {
		return nil, err
	}
	return &topo, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks struct tags and cross references between sections
func (t *Topology) Validate() error {
	if err := newValidator().Struct(t); err != nil {
		return errors.ConfigError(fmt.Sprintf("invalid shards file: %s", formatValidation(err)))
	}

	known := make(map[string]bool, len(t.Shards))
	for _, s := range t.Shards {
		if known[s.Identity] {
			return errors.ConfigError(fmt.Sprintf("shard %s is declared twice", s.Identity)).WithShard(s.Identity)
		}
		known[s.Identity] = true
	}

	if t.Default != "" && !known[t.Default] {
		return errors.ConfigError(fmt.Sprintf("default shard %s is not declared", t.Default))
	}

	for i, r := range t.Rules {
		for _, s := range r.Shards {
			if !known[s] {
				return errors.ConfigError(fmt.Sprintf("rule %d (%s) references unknown shard %s", i, r.Statement, s))
			}
		}
	}

	for i, p := range t.Partitions {
		for _, s := range p.Shards {
			if !known[s] {
				return errors.ConfigError(fmt.Sprintf("partition %d (%s) references unknown shard %s", i, p.Statement, s))
			}
		}
	}

	return nil
}

// Shard returns the spec for identity
func (t *Topology) Shard(identity string) (ShardSpec, bool) {
	for _, s := range t.Shards {
		if s.Identity == identity {
			return s, true
		}
	}
	return ShardSpec{}, false
}

// Router compiles rules and partitions into one router. Rules are consulted
// first; partitions only see statements no rule matched. It returns nil when
// the file declares neither.
func (t *Topology) Router() (routing.Router, error) {
	var routers []routing.Router

	if len(t.Rules) > 0 {
		rules, err := routing.NewRuleRouter(t.Rules)
		if err != nil {
			return nil, err
		}
		routers = append(routers, rules)
	}

	for _, p := range t.Partitions {
		hash, err := routing.NewHashRouter(p.Shards, routing.MapKey(p.Field))
		if err != nil {
			return nil, err
		}
		scoped, err := routing.NewScopedRouter(p.Statement, hash)
		if err != nil {
			return nil, err
		}
		routers = append(routers, scoped)
	}

	switch len(routers) {
	case 0:
		return nil, nil
	case 1:
		return routers[0], nil
	}
	return routing.NewCompositeRouter(routers...), nil
}

func formatValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
