package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"finreport/internal/core"
)

// aliasFile is the on-disk format of TYPE_ALIASES_FILE:
//
//	expense: ["Chi tiêu", "spending"]
//	income:  ["Thu nhập", "salary"]
type aliasFile struct {
	Expense []string `yaml:"expense"`
	Income  []string `yaml:"income"`
}

// LoadTypeAliases returns the built-in aliases extended with the ones in
// path. An empty path yields the defaults.
func LoadTypeAliases(path string) (core.TypeAliases, error) {
	aliases := core.DefaultTypeAliases()
	if path == "" {
		return aliases, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read type aliases: %w", err)
	}
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse type aliases %s: %w", path, err)
	}
	for _, tag := range f.Expense {
		aliases.Add(tag, core.TypeExpense)
	}
	for _, tag := range f.Income {
		aliases.Add(tag, core.TypeIncome)
	}
	return aliases, nil
}
